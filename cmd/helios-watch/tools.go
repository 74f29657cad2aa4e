// cmd/helios-watch/tools.go
package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vedantsgith/Helios-Watch/internal/anomaly"
	"github.com/vedantsgith/Helios-Watch/internal/auth"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

func newClassifyCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <metric> <value>",
		Short: "Print the severity tier of a reading",
		Long:  "Classify a reading of flux, wind, kp, or proton against the dashboard's tier thresholds.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := telemetry.Metric(args[0])
			if !m.Valid() {
				return fmt.Errorf("unknown metric %q: must be one of %v", args[0], telemetry.Metrics)
			}
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			tier := anomaly.Classify(m, v)
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(tier)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %g: %s (%s)\n", m, v, tier.Label, tier.Severity)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tier as JSON")
	return cmd
}

func newHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Hash an API or judge key for config.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashKey(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), h)
			return err
		},
	}
}
