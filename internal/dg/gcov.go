package dg

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/outcome"
	"github.com/eykd/dgrun/internal/tclword"
)

var (
	gcovLineNumRE = regexp.MustCompile(`^[^:]+: *([0-9]+):`)
	// Groups: count reported by gcov, line number, count expected by the test.
	gcovCountRE  = regexp.MustCompile(`^ *([^:]*): *([0-9]+):.*count\(([0-9]+)\)`)
	gcovBranchRE = regexp.MustCompile(`branch\(([0-9 ]+)\)`)
	gcovTakenRE  = regexp.MustCompile(`^branch +[0-9]+ taken ([0-9]+)%`)
	gcovEndRE    = regexp.MustCompile(`branch\(end\)`)
)

// DefaultGcov is the coverage tool run-gcov invokes when the engine names none.
const DefaultGcov = "gcov"

// runGcov implements "dg-final { run-gcov [calls] [branches] { gcov args } }".
// The last word of the gcov arguments names the source file being covered.
func runGcov(ctx context.Context, fc *FinalContext, args []string) error {
	if len(args) == 0 {
		return dgerr.New(dgerr.Directive, "run-gcov: missing arguments")
	}
	var calls, branches bool
	for _, a := range args[:len(args)-1] {
		switch a {
		case "calls":
			calls = true
		case "branches":
			branches = true
		}
	}
	gcovArgs, err := tclword.Split(args[len(args)-1])
	if err != nil {
		return err
	}
	if len(gcovArgs) == 0 {
		return dgerr.New(dgerr.Directive, "run-gcov: missing source file")
	}
	testcase := gcovArgs[len(gcovArgs)-1]
	res := fc.Result
	id := fc.Test.ID

	tool := fc.Engine.Gcov
	if tool == "" {
		tool = DefaultGcov
	}
	r := fc.Engine.runCommand(ctx, res, ExecRequest{
		Path:    tool,
		Args:    gcovArgs,
		Dir:     fc.Test.TmpDir,
		Timeout: fc.Engine.execTimeout(),
	})
	if !r.Succeeded() {
		res.Record(outcome.Fail, id+" gcov failed: "+r.Output, outcome.ExpectUnset)
		cleanGcovFiles(fc.Test.TmpDir, testcase)
		return nil
	}

	gcovFile := filepath.Join(fc.Test.TmpDir, filepath.Base(testcase)+".gcov")
	data, err := os.ReadFile(gcovFile)
	if err != nil {
		res.Record(outcome.Fail, id+" gcov failed: "+filepath.Base(gcovFile)+" does not exist", outcome.ExpectUnset)
		cleanGcovFiles(fc.Test.TmpDir, testcase)
		return nil
	}
	lines := splitLines(string(data))

	lfailed := verifyGcovLines(res, lines)
	bfailed := 0
	if branches {
		bfailed = verifyGcovBranches(res, lines)
	}
	if calls {
		res.Record(outcome.Unresolved, id+" gcov: call return percentages are not supported", outcome.ExpectUnset)
	}

	if lfailed > 0 || bfailed > 0 {
		res.Record(outcome.Fail, fmt.Sprintf(
			"%s gcov: %d failures in line counts, %d in branch percentages, %d in return percentages",
			id, lfailed, bfailed, 0), outcome.ExpectUnset)
		return nil
	}
	res.Record(outcome.Pass, id+" gcov", outcome.ExpectUnset)
	cleanGcovFiles(fc.Test.TmpDir, testcase)
	return nil
}

func splitLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

// verifyGcovLines compares gcov's execution counts with count(N) annotations.
func verifyGcovLines(res *outcome.Result, lines []string) int {
	failures := 0
	for _, l := range lines {
		m := gcovCountRE.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		actual, lineNum, expected := m[1], m[2], m[3]
		switch {
		case actual == "":
			res.Record(outcome.Fail, lineNum+":no data available for this line", outcome.ExpectUnset)
			failures++
		case actual != expected:
			res.Record(outcome.Fail, lineNum+":is "+actual+":should be "+expected, outcome.ExpectUnset)
			failures++
		}
	}
	return failures
}

// verifyGcovBranches checks branch(P ...) annotations against gcov's
// "branch N taken P%" lines. Percentages above 50 are folded to 100-P so a
// branch and its complement match the same annotation.
func verifyGcovBranches(res *outcome.Result, lines []string) int {
	failures := 0
	lineNum := "0"
	var expected []int

	missing := func() {
		res.Record(outcome.Fail, fmt.Sprintf("%s: expected branch percentages not found: %v", lineNum, expected), outcome.ExpectUnset)
		failures++
	}

	for _, l := range lines {
		if m := gcovLineNumRE.FindStringSubmatch(l); m != nil {
			lineNum = m[1]
		}
		if !strings.Contains(l, "branch") {
			continue
		}
		if m := gcovBranchRE.FindStringSubmatch(l); m != nil {
			if len(expected) > 0 {
				missing()
			}
			expected = expected[:0]
			for _, f := range strings.Fields(m[1]) {
				p, _ := strconv.Atoi(f)
				if p > 50 {
					p = 100 - p
				}
				expected = append(expected, p)
			}
			continue
		}
		if m := gcovTakenRE.FindStringSubmatch(l); m != nil {
			p, _ := strconv.Atoi(m[1])
			if p > 100 {
				res.Record(outcome.Fail, fmt.Sprintf("%s: percentage greater than 100: %d", lineNum, p), outcome.ExpectUnset)
				failures++
				continue
			}
			if p > 50 {
				p = 100 - p
			}
			if i := slices.Index(expected, p); i >= 0 {
				expected = slices.Delete(expected, i, i+1)
			}
			continue
		}
		if gcovEndRE.MatchString(l) {
			if len(expected) > 0 {
				missing()
			}
			expected = expected[:0]
		}
	}
	if len(expected) > 0 {
		missing()
	}
	return failures
}

func cleanGcovFiles(dir, testcase string) {
	base := strings.TrimSuffix(filepath.Base(testcase), filepath.Ext(testcase))
	for _, ext := range []string{".bb", ".bbg", ".da", ".gcda", ".gcno"} {
		removeQuietly(filepath.Join(dir, base+ext))
	}
	removeQuietly(filepath.Join(dir, filepath.Base(testcase)+".gcov"))
}
