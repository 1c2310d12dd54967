package dg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/tclword"
)

// CompatMain marks the main file of a split-object test; its _x and _y
// partners sit next to it.
const CompatMain = "_main"

var (
	compatOptionsRE  = regexp.MustCompile(`\{[ \t]*dg-options[ \t]+(.*)[ \t]+\}`)
	compilerSignalRE = regexp.MustCompile(`^.*cc: Internal compiler error: program.*got fatal signal (6|11)`)
	lineBreaksRE     = regexp.MustCompile(`[\r\n]`)
)

// runCompat builds foo_main, foo_x and foo_y into separate objects, links
// them and runs the result, once per option set.
func (e *Engine) runCompat(ctx context.Context, t Test, res *outcome.Result) error {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return err
	}
	var extra []string
	if m := compatOptionsRE.FindSubmatch(data); m != nil {
		words, err := tclword.Split(string(m[1]))
		if err != nil {
			return err
		}
		if len(words) > 0 {
			extra = strings.Fields(words[0])
		}
	}

	dir, file := filepath.Split(t.Path)
	partner := func(suffix string) string {
		return filepath.Join(dir, strings.Replace(file, CompatMain, suffix, 1))
	}
	sources := []string{t.Path, partner("_x"), partner("_y")}

	testcase := t.ID
	if i := strings.Index(testcase, CompatMain); i >= 0 {
		testcase = testcase[:i]
	}
	objs := []string{
		filepath.Join(t.TmpDir, "main_tst.o"),
		filepath.Join(t.TmpDir, "x_tst.o"),
		filepath.Join(t.TmpDir, "y_tst.o"),
	}
	defer func() {
		for _, o := range objs {
			removeQuietly(o)
		}
	}()
	execBase := filepath.Join(t.TmpDir, strings.ReplaceAll(testcase, "/", "-"))

	for i, opts := range e.optionSets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		options := append(append([]string(nil), extra...), strings.Fields(opts)...)

		for j, src := range sources {
			removeQuietly(objs[j])
			output := e.compile(ctx, res, CompileRequest{
				Sources: []string{src},
				Output:  objs[j],
				Kind:    Assemble,
				Options: options,
				Dir:     t.TmpDir,
			})
			checkCompile(res, testcase+" "+filepath.Base(objs[j])+" compile", opts, objs[j], output)
		}

		pair := filepath.Base(objs[1]) + "-" + filepath.Base(objs[2])
		exe := fmt.Sprintf("%s-%d1", execBase, i)
		e.compatRun(ctx, t, res, testcase+" "+pair, opts, objs, exe, options)
	}
	return nil
}

// compatRun links objs into exe and runs it.
func (e *Engine) compatRun(ctx context.Context, t Test, res *outcome.Result, name, opts string, objs []string, exe string, options []string) {
	linkMsg := joinOptions(name+" link", opts)
	execMsg := joinOptions(name+" execute", opts)

	for _, o := range objs {
		if !fileExists(o) {
			res.Record(outcome.Unresolved, linkMsg, outcome.ExpectUnset)
			res.Record(outcome.Unresolved, execMsg, outcome.ExpectUnset)
			return
		}
	}
	removeQuietly(exe)
	output := e.compile(ctx, res, CompileRequest{
		Sources:     objs,
		Output:      exe,
		Kind:        Run,
		Options:     options,
		LinkOptions: e.Family.LinkOptions,
		Dir:         t.TmpDir,
	})
	if !checkCompile(res, linkMsg, opts, exe, output) {
		res.Record(outcome.Unresolved, execMsg, outcome.ExpectUnset)
		return
	}
	o := e.runProgram(ctx, t, exe, res)
	removeQuietly(exe)
	res.Record(o, execMsg, outcome.ExpectUnset)
}

// checkCompile records whether a build produced objname without any
// output, and reports the verdict.
func checkCompile(res *outcome.Result, testcase, option, objname, output string) bool {
	if m := compilerSignalRE.FindStringSubmatch(output); m != nil {
		res.Record(outcome.Fail, withCFlags(testcase, withCFlags("Got Signal "+m[1], option)), outcome.ExpectUnset)
		return false
	}
	if lineBreaksRE.ReplaceAllString(output, "") != "" || (objname != "" && !fileExists(objname)) {
		res.Record(outcome.Fail, withCFlags(testcase, option), outcome.ExpectUnset)
		return false
	}
	res.Record(outcome.Pass, withCFlags(testcase, option), outcome.ExpectUnset)
	return true
}

func withCFlags(testcase, cflags string) string {
	if cflags == "" {
		return testcase
	}
	return testcase + ", " + cflags
}
