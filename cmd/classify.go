package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// classifyJSON is one line of classify --json output.
type classifyJSON struct {
	Path     string `json:"path"`
	Family   string `json:"family"`
	Prefix   string `json:"prefix,omitempty"`
	Language string `json:"language"`
}

// NewClassifyCmd creates the classify subcommand.
func NewClassifyCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "classify <path>...",
		Short:        "Print the family the prefix table picks for each path",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")

			s, err := openSession(cmd, sio)
			if err != nil {
				return err
			}
			out := make([]classifyJSON, 0, len(args))
			for _, arg := range args {
				id := testID(s.cfg.SrcDir, arg)
				p, err := s.reg.Classify(id)
				if err != nil {
					return err
				}
				out = append(out, classifyJSON{Path: id, Family: p.Name, Prefix: p.Prefix, Language: p.Language})
			}

			if jsonMode {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
				return nil
			}
			for _, c := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sanitizePath(c.Path), c.Family)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}
