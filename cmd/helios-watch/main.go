// cmd/helios-watch/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configDir string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "helios-watch",
		Short:         "Space weather telemetry gateway",
		Long:          "Ingests solar flare and space weather telemetry, reconciles simulation overlays, and serves dashboards.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "Path to the configuration file directory")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newClassifyCommand())
	cmd.AddCommand(newHashKeyCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
