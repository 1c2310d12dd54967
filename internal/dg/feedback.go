package dg

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eykd/dgrun/internal/outcome"
)

// Feedback configures profile-directed feedback tests. Each option set
// builds the test instrumented, runs it to collect a profile, rebuilds it
// using that profile and runs it again.
type Feedback struct {
	// Generate is the option that instruments the build (-fprofile-arcs).
	Generate string
	// Use is the option that consumes the profile (-fbranch-probabilities).
	Use string
	// DataExt is the extension of the profile data file, leading dot
	// included. Glob metacharacters are allowed.
	DataExt string
}

// FeedbackOptionSets are the optimization levels feedback tests are
// usually run at.
var FeedbackOptionSets = []string{"-g", "-O0", "-O1", "-O2", "-O3", "-O3 -g", "-Os"}

func (e *Engine) runFeedback(ctx context.Context, t Test, res *outcome.Result) error {
	fb := e.Family.Feedback
	base := strings.TrimSuffix(filepath.Base(t.ID), filepath.Ext(t.ID))
	exeBase := filepath.Join(t.TmpDir, base+".x")
	defer cleanProfileData(t.TmpDir, base, fb.DataExt)

	for i, opts := range e.optionSets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		instrumented := fmt.Sprintf("%s%d1", exeBase, i)
		optimized := fmt.Sprintf("%s%d2", exeBase, i)
		removeQuietly(instrumented)
		removeQuietly(optimized)
		cleanProfileData(t.TmpDir, base, fb.DataExt)

		gen := joinOptions(opts, fb.Generate)
		e.compile(ctx, res, e.feedbackBuild(t, instrumented, gen))
		o := e.runProgram(ctx, t, instrumented, res)
		removeQuietly(instrumented)
		msg := t.ID + " execution,   " + gen
		if o == outcome.Pass && !hasProfileData(t.TmpDir, base, fb.DataExt) {
			o = outcome.Fail
			msg = t.ID + " execution: file " + base + fb.DataExt + " does not exist, " + gen
		}
		res.Record(o, msg, outcome.ExpectUnset)

		use := joinOptions(opts, fb.Use)
		msg = t.ID + " execution,   " + use
		if o != outcome.Pass {
			res.Record(outcome.Unresolved, t.ID+" compilation, "+use, outcome.ExpectUnset)
			res.Record(outcome.Unresolved, msg, outcome.ExpectUnset)
			continue
		}
		e.compile(ctx, res, e.feedbackBuild(t, optimized, use))
		o = e.runProgram(ctx, t, optimized, res)
		removeQuietly(optimized)
		res.Record(o, msg, outcome.ExpectUnset)
		if o == outcome.Pass {
			cleanProfileData(t.TmpDir, base, fb.DataExt)
		}
	}
	return nil
}

func (e *Engine) feedbackBuild(t Test, output, options string) CompileRequest {
	return CompileRequest{
		Sources:     []string{t.Path},
		Output:      output,
		Kind:        Run,
		Options:     strings.Fields(options),
		LinkOptions: e.Family.LinkOptions,
		Dir:         t.TmpDir,
	}
}

func joinOptions(opts, extra string) string {
	return strings.TrimSpace(opts + " " + extra)
}

// profileDataPatterns match the profile of base in dir. Newer compilers
// prefix the data file with the executable name.
func profileDataPatterns(dir, base, ext string) []string {
	return []string{
		filepath.Join(dir, base+ext),
		filepath.Join(dir, "*-"+base+ext),
	}
}

func hasProfileData(dir, base, ext string) bool {
	for _, p := range profileDataPatterns(dir, base, ext) {
		if m, _ := filepath.Glob(p); len(m) > 0 {
			return true
		}
	}
	return false
}

func cleanProfileData(dir, base, ext string) {
	for _, p := range profileDataPatterns(dir, base, ext) {
		matches, _ := filepath.Glob(p)
		for _, m := range matches {
			removeQuietly(m)
		}
	}
}
