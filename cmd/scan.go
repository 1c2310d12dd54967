package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/family"
)

// scanOutput is the JSON output schema for the scan command.
type scanOutput struct {
	Version string         `json:"version"`
	Test    string         `json:"test"`
	Family  string         `json:"family"`
	Plan    *dg.Plan       `json:"plan"`
	Error   *scanErrorJSON `json:"error,omitempty"`
}

// scanErrorJSON describes why a file could not be scanned.
type scanErrorJSON struct {
	Class   string `json:"class"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func newScanError(err error) *scanErrorJSON {
	var de *dgerr.Error
	if errors.As(err, &de) {
		msg := de.Message
		if de.Cause != nil {
			msg += ": " + de.Cause.Error()
		}
		return &scanErrorJSON{Class: string(de.Class), Line: de.Line, Message: msg}
	}
	return &scanErrorJSON{Class: "io", Message: err.Error()}
}

// NewScanCmd creates the scan subcommand.
func NewScanCmd(sio SuiteIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Print the directive plan of a test file as JSON",
		Long: `Scan reads the dg directives of one test file and prints the resulting
plan without building anything. Capabilities are assumed present.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetString("family")
			target, _ := cmd.Flags().GetString("target")

			s, err := openSession(cmd, sio)
			if err != nil {
				return err
			}
			id := testID(s.cfg.SrcDir, args[0])
			prof, err := profileFor(s.reg, id, force)
			if err != nil {
				return err
			}
			fam, err := prof.Family()
			if err != nil {
				return err
			}

			platform := s.cfg.Platform()
			if target != "" {
				platform.Target = target
			}
			e := &dg.Engine{Family: fam, Platform: platform, Caps: dg.AllCapabilities(), Logger: s.logger}
			plan := dg.NewPlan(fam.DefaultOptions, fam.DefaultKind)
			scanErr := e.Scanner().ScanFile(args[0], plan)

			out := scanOutput{Version: "1", Test: id, Family: fam.Name, Plan: plan}
			if scanErr != nil {
				out.Error = newScanError(scanErr)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			if scanErr != nil {
				return fmt.Errorf("scanning %s: %w", sanitizePath(args[0]), scanErr)
			}
			return nil
		},
	}

	cmd.Flags().String("family", "", "Scan with this family instead of classifying by path")
	cmd.Flags().String("target", "", "Evaluate selectors against this target triple")

	return cmd
}

// testID names path relative to srcdir when it lies inside it, and as given
// otherwise.
func testID(srcdir, path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		if root, err := filepath.Abs(srcdir); err == nil {
			if rel, err := filepath.Rel(root, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(path)
}

// profileFor returns the forced profile, or the one the prefix table
// picks for id.
func profileFor(reg *family.Registry, id, force string) (*family.Profile, error) {
	if force == "" {
		return reg.Classify(id)
	}
	p, ok := reg.Lookup(force)
	if !ok {
		return nil, fmt.Errorf("unknown family %q", force)
	}
	return p, nil
}
