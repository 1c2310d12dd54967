// Package cmd implements the dgrun CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/config"
)

// NewRootCmd creates the root dgrun command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithIO(newDefaultSuiteIO())
}

// newRootCmdWithIO creates the root command with an injectable SuiteIO.
func newRootCmdWithIO(sio SuiteIO) *cobra.Command {
	root := &cobra.Command{
		Use:           "dgrun",
		Short:         "dgrun - run DejaGNU dg-style compiler tests",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE:          rootRunE,
	}
	root.PersistentFlags().String("config", "", "Config file (default $"+config.EnvPath+" or ./"+config.DefaultPath+")")

	root.AddCommand(NewRunCmd(sio))
	root.AddCommand(NewScanCmd(sio))
	root.AddCommand(NewLexCmd())
	root.AddCommand(NewClassifyCmd(sio))
	root.AddCommand(NewProbeCmd(sio))
	root.AddCommand(NewHistoryCmd(sio))
	root.AddCommand(NewWatchCmd(sio))
	root.AddCommand(NewScheduleCmd(sio))
	return root
}

func rootRunE(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}
