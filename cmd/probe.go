package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// probeOutput is the JSON output schema for the probe command.
type probeOutput struct {
	Language     string     `json:"language"`
	Target       string     `json:"target"`
	TLS          bool       `json:"tls"`
	Weak         bool       `json:"weak"`
	Iconv        bool       `json:"iconv"`
	DebugOptions [][]string `json:"debugOptions"`
}

// NewProbeCmd creates the probe subcommand.
func NewProbeCmd(sio SuiteIO) *cobra.Command {
	return &cobra.Command{
		Use:          "probe",
		Short:        "Probe the configured compiler and print its capabilities as JSON",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, sio)
			if err != nil {
				return err
			}
			r, err := s.runner(cmd.Context())
			if err != nil {
				return err
			}
			lang, _, _ := probeToolchain(r.Toolchains)

			debug := r.Caps.DebugOptions
			if debug == nil {
				debug = [][]string{}
			}
			out := probeOutput{
				Language:     lang,
				Target:       s.cfg.Target,
				TLS:          r.Caps.TLS,
				Weak:         r.Caps.Weak,
				Iconv:        r.Caps.Iconv,
				DebugOptions: debug,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			return nil
		},
	}
}
