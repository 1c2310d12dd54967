package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/report"
	"github.com/eykd/dgrun/internal/suite"
	"github.com/eykd/dgrun/internal/watch"
)

// NewWatchCmd creates the watch subcommand.
func NewWatchCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rerun tests whose source files change",
		Long: `Watch follows dir (srcdir by default) and reruns each test file that is
written or created, printing its DejaGNU log. It stops on interrupt.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetString("family")
			debounce, _ := cmd.Flags().GetDuration("debounce")

			s, err := openSession(cmd, sio)
			if err != nil {
				return err
			}
			dir := s.cfg.SrcDir
			if len(args) == 1 {
				dir = args[0]
			}
			// Reject a dir outside srcdir before anything is watched.
			if _, err := suite.Discover(s.cfg.SrcDir, []string{dir}, s.reg, force); err != nil {
				return fmt.Errorf("discovering tests: %w", err)
			}

			ctx := cmd.Context()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			w, err := watch.New(dir, watch.Options{Debounce: debounce, Logger: s.logger})
			if err != nil {
				return err
			}
			return w.Run(ctx, func(ctx context.Context, paths []string) error {
				tests, err := suite.Discover(s.cfg.SrcDir, existing(paths), s.reg, force)
				if err != nil {
					s.logger.Warn().Err(err).Msg("skipping changed files")
					return nil
				}
				if len(tests) == 0 {
					return nil
				}
				rw, err := report.New(report.FormatDejaGNU, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				_, err = s.run(ctx, suiteRun{runner: runner, tests: tests, writer: rw, footer: cmd.ErrOrStderr()})
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().String("family", "", "Run every test with this family instead of classifying by path")
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Minimum time between reruns")

	return cmd
}

// existing drops paths removed since they were reported.
func existing(paths []string) []string {
	out := paths[:0:0]
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
