package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/policy"
)

var (
	checkMethod  string
	checkPath    string
	checkHeaders []string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a policy check without a running server",
	Long: `Check what verdict a request would receive without running the site.
Useful for testing and debugging policy rules.`,
	Example: `  viewfilter check -c site.yaml --path /admin/users
  viewfilter check -c site.yaml --method POST --path /json -H "User-Agent: curl/8.0"`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkMethod, "method", http.MethodGet, "HTTP method to check")
	checkCmd.Flags().StringVar(&checkPath, "path", "", "request path to check")
	checkCmd.Flags().StringArrayVarP(&checkHeaders, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	_ = checkCmd.MarkFlagRequired("path")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("--config/-c is required for check command")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	headers, err := parseHeaders(checkHeaders)
	if err != nil {
		return err
	}

	result, err := engine.Evaluate(context.Background(), &policy.EvalInput{
		Method:  strings.ToUpper(checkMethod),
		Path:    checkPath,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(api.CheckResponse{
		Verdict: result.Verdict,
		Rule:    result.Rule,
		Message: result.Message,
	})
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[http.CanonicalHeaderKey(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return headers, nil
}
