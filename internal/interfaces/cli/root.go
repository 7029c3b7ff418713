// Package cli defines the atlas command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapplot/customer-atlas/internal/config"
)

var cfgFile string

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "atlas",
		Short:         "Customer map visualization service",
		Long:          "customer-atlas serves the CRM customer map: clustering, filtering, and postal-code radius search over the customer dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (default: environment variables only)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}

// loadConfig resolves the configuration from the --config file when given,
// otherwise from environment variables over defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadFromEnv()
}
