package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string

	// rootCmd runs the map viewer when called without a subcommand
	rootCmd = &cobra.Command{
		Use:   "pipmap",
		Short: "PipMap - progressive OpenStreetMap viewer",
		Long: `PipMap shows an OpenStreetMap area around a focus point.

A small area is fetched first so the map appears quickly, then the
area is widened in the background until the full radius is loaded.
Roads and points of interest are drawn in a monochrome green style.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viewCmd.RunE(cmd, args)
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (optional, defaults to ./pipmap.yaml or ./configs/pipmap.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, console) (default: console)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(locateCmd)
}
