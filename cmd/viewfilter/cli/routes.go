package cli

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tkingovr/viewfilter/internal/audit"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Bind the configured routes and print them",
	Long: `Resolve every route of the config file against the handler and filter
registries, exactly as serve would, and print the result as JSON. Unknown
route options and filter names are reported as errors.`,
	Example: `  viewfilter routes -c site.yaml`,
	Args:    cobra.NoArgs,
	RunE:    runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	s, err := newSite(cfg, engine, auditStore, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(s.binder.Routes())
}
