package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set via ldflags at release time
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of viewfilter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "viewfilter %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
