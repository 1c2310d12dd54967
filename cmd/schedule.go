package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/report"
	"github.com/eykd/dgrun/internal/schedule"
	"github.com/eykd/dgrun/internal/suite"
)

// NewScheduleCmd creates the schedule subcommand.
func NewScheduleCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the whole suite on a cron schedule",
		Long: `Schedule runs every test under srcdir at each activation of the cron
expression (--cron, or schedule in dgrun.toml) and records the run in the
history database when one is configured. It stops on interrupt.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, _ := cmd.Flags().GetString("cron")

			s, err := openSession(cmd, sio)
			if err != nil {
				return err
			}
			if spec == "" {
				spec = s.cfg.Schedule
			}
			if spec == "" {
				return errors.New("no schedule given (use --cron or set schedule in dgrun.toml)")
			}
			sched, err := schedule.New(spec, s.logger)
			if err != nil {
				return err
			}

			var h History
			if s.cfg.History != "" {
				if h, err = s.history(); err != nil {
					return err
				}
				defer h.Close()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "next run at %s\n", sched.Next(sio.Now()).Format(time.RFC3339))

			return sched.Run(cmd.Context(), func(ctx context.Context) error {
				tests, err := suite.Discover(s.cfg.SrcDir, nil, s.reg, "")
				if err != nil {
					return fmt.Errorf("discovering tests: %w", err)
				}
				// The compiler may be rebuilt between runs.
				runner, err := s.runner(ctx)
				if err != nil {
					return err
				}
				w, err := report.New(report.FormatDejaGNU, io.Discard)
				if err != nil {
					return err
				}
				_, err = s.run(ctx, suiteRun{runner: runner, tests: tests, writer: w, footer: cmd.OutOrStdout(), history: h})
				return err
			})
		},
	}

	cmd.Flags().String("cron", "", "Cron expression; overrides schedule in dgrun.toml")

	return cmd
}
