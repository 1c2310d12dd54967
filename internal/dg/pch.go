package dg

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eykd/dgrun/internal/outcome"
)

// runPCH checks that compiling a test against a precompiled header produces
// the same assembly as compiling it against the header text. The header
// source lives next to the test as <base><suffix>s (foo.hs for foo.c).
func (e *Engine) runPCH(ctx context.Context, t Test, res *outcome.Result) error {
	suffix := e.Family.PCHSuffix
	base := strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
	tmpBase := filepath.Join(t.TmpDir, base)
	header := tmpBase + suffix
	gch := header + DefaultExtensions[Precompile]
	asm := tmpBase + DefaultExtensions[Compile]
	asmGch := asm + "-gch"
	headerSrc := strings.TrimSuffix(t.Path, filepath.Ext(t.Path)) + suffix + "s"

	for _, f := range []string{gch, asm, asmGch} {
		removeQuietly(f)
	}
	defer func() {
		for _, f := range []string{header, gch, asm, asmGch} {
			removeQuietly(f)
		}
	}()

	for _, opts := range e.optionSets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		removeQuietly(header)
		if err := copyFile(headerSrc, header); err != nil {
			res.Record(outcome.Unresolved, t.ID+" "+opts+": "+err.Error(), outcome.ExpectUnset)
			continue
		}

		pch := dgRun{source: header, kind: Precompile, noDefaults: true, keepOutput: true}
		if _, err := e.runDG(ctx, t, opts, res, pch); err != nil {
			return err
		}

		asmOutcome := outcome.Untested
		if fileExists(gch) {
			removeQuietly(header)
			withInclude := strings.TrimSpace(opts + " -I" + t.TmpDir)
			keep := dgRun{noDefaults: true, keepOutput: true}
			if _, err := e.runDG(ctx, t, withInclude, res, keep); err != nil {
				return err
			}
			removeQuietly(gch)
			if fileExists(asm) {
				if err := os.Rename(asm, asmGch); err != nil {
					return err
				}
				if err := copyFile(headerSrc, header); err != nil {
					return err
				}
				if _, err := e.runDG(ctx, t, withInclude, res, keep); err != nil {
					return err
				}
				if sameContents(asm, asmGch) {
					asmOutcome = outcome.Pass
				} else {
					asmOutcome = outcome.Fail
				}
				removeQuietly(header)
				removeQuietly(asm)
				removeQuietly(asmGch)
			}
		} else {
			res.Record(outcome.Untested, t.ID+" "+opts, outcome.ExpectUnset)
		}
		res.Record(asmOutcome, t.ID+" "+opts+" assembly comparision", outcome.ExpectUnset)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sameContents(a, b string) bool {
	da, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	return bytes.Equal(da, db)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
