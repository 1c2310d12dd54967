package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/tclword"
)

// NewLexCmd creates the lex subcommand.
func NewLexCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "lex <text>",
		Short:        "Split directive argument text into words and print them as JSON",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			words, err := tclword.Split(args[0])
			if err != nil {
				return fmt.Errorf("lexing: %w", err)
			}
			if words == nil {
				words = []string{}
			}
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(words); err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			return nil
		},
	}
}
