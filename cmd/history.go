package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/report"
	"github.com/eykd/dgrun/internal/store"
)

// NewHistoryCmd creates the history subcommand and its show and diff
// children. Without a child it lists recent runs.
func NewHistoryCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "history",
		Short:        "List recorded runs",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			jsonMode, _ := cmd.Flags().GetBool("json")

			h, err := openHistory(cmd, sio)
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.Runs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if jsonMode {
				if runs == nil {
					runs = []store.Run{}
				}
				return encodeJSON(cmd, runs)
			}
			now := sio.Now()
			for _, r := range runs {
				state := "running"
				if r.FinishedAt != nil {
					state = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %s tests  %s failed  %s\n",
					r.ID, humanize.RelTime(r.StartedAt, now, "ago", "from now"), sanitizePath(r.Target),
					humanize.Comma(int64(r.Tests)), humanize.Comma(int64(r.Failed)), state)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	cmd.Flags().Bool("json", false, "Output as JSON")

	cmd.AddCommand(newHistoryShowCmd(sio))
	cmd.AddCommand(newHistoryDiffCmd(sio))
	return cmd
}

func newHistoryShowCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "show <run-id>",
		Short:        "Print the results of one run",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			h, err := openHistory(cmd, sio)
			if err != nil {
				return err
			}
			defer h.Close()

			results, err := h.Results(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no run %s", sanitizePath(args[0]))
				}
				return fmt.Errorf("reading run: %w", err)
			}
			w, err := report.New(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			sum := report.NewSummary(args[0], "", time.Time{})
			for _, r := range results {
				sum.Add(r)
				if err := w.WriteResult(r); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}
			return w.Close(sum)
		},
	}

	cmd.Flags().String("format", report.FormatDejaGNU, "Report format")
	return cmd
}

func newHistoryDiffCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old-run-id> <new-run-id>",
		Short: "List tests that regressed or were fixed between two runs",
		Long: `Diff compares the status of every test present in both runs and exits
non-zero when any test that passed in the old run no longer passes.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")

			h, err := openHistory(cmd, sio)
			if err != nil {
				return err
			}
			defer h.Close()

			d, err := h.Diff(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("comparing runs: %w", err)
			}
			if jsonMode {
				if err := encodeJSON(cmd, d); err != nil {
					return err
				}
			} else {
				for _, c := range d.Regressions {
					fmt.Fprintf(cmd.OutOrStdout(), "REGRESSION %s: %s -> %s\n", sanitizePath(c.TestID), c.Old, c.New)
				}
				for _, c := range d.Fixes {
					fmt.Fprintf(cmd.OutOrStdout(), "FIXED %s: %s -> %s\n", sanitizePath(c.TestID), c.Old, c.New)
				}
			}
			if n := len(d.Regressions); n > 0 {
				return fmt.Errorf("%d regressions", n)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func openHistory(cmd *cobra.Command, sio SuiteIO) (History, error) {
	s, err := openSession(cmd, sio)
	if err != nil {
		return nil, err
	}
	return s.history()
}

func encodeJSON(cmd *cobra.Command, v any) error {
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
