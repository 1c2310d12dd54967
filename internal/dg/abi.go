package dg

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/eykd/dgrun/internal/outcome"
)

// ABIBaselineFile is the name of the symbol baselines under
// libstdc++-v3/config/abi/<abi name>/.
const ABIBaselineFile = "baseline_symbols.txt"

type abiRule struct {
	pattern glob.Glob
	name    string
}

func abiRules(pairs ...string) []abiRule {
	rules := make([]abiRule, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		rules = append(rules, abiRule{pattern: glob.MustCompile(pairs[i]), name: pairs[i+1]})
	}
	return rules
}

var (
	abiHosts = abiRules(
		"x86_64-*-linux*", "x86_64-linux-gnu",
		"alpha*-*-freebsd5*", "alpha-freebsd5",
		"i*86-*-freebsd4*", "i386-freebsd4",
		"i*86-*-freebsd5*", "i386-freebsd5",
		"sparc*-*-freebsd5*", "sparc-freebsd5",
	)
	abiCPUs = abiRules(
		"alpha*", "alpha",
		"i[567]86", "i486",
		"x86_64", "i486",
		"hppa*", "hppa",
		"powerpc*", "powerpc",
		"rs6000", "powerpc",
		"s390x", "s390",
		"sparc*", "sparc",
		"ultrasparc", "sparc",
	)
)

// ABIName maps a target triple to the directory holding its baseline, the
// way libstdc++'s configure.host does.
func ABIName(target string) string {
	for _, r := range abiHosts {
		if r.pattern.Match(target) {
			return r.name
		}
	}
	parts := strings.SplitN(target, "-", 3)
	if len(parts) < 3 {
		return target
	}
	cpu := parts[0]
	for _, r := range abiCPUs {
		if r.pattern.Match(cpu) {
			cpu = r.name
			break
		}
	}
	return cpu + "-" + parts[2]
}

// runABI compares the symbols exported by the libstdc++ the compiler links
// against with the baseline t.Path. Baselines for other targets are
// unsupported. Setup problems make the test an error rather than a failure.
func (e *Engine) runABI(ctx context.Context, t Test, res *outcome.Result) error {
	if filepath.Base(filepath.Dir(t.Path)) != ABIName(e.Platform.Target) {
		res.Record(outcome.Unsupported, t.ID, outcome.ExpectUnset)
		return nil
	}

	abiCheck, ok := e.abiCheckProgram(ctx, t, res)
	if !ok {
		return nil
	}
	if !fileExists(abiCheck) {
		res.Error("No abi_check program '" + abiCheck + "'")
		return nil
	}

	// <v3>/config/abi/<name>/baseline_symbols.txt
	v3 := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(t.Path))))
	var extract string
	for _, sub := range []string{"scripts", filepath.Join("config", "abi")} {
		if p := filepath.Join(v3, sub, "extract_symvers"); fileExists(p) {
			extract = p
			break
		}
	}
	if extract == "" {
		res.Error("Can't find extract_symvers")
		return nil
	}

	r := e.runCommand(ctx, res, e.abiCommand(t, "ldd", abiCheck))
	if !r.Succeeded() {
		res.Error("Error running ldd to find libstdc++")
		return nil
	}
	var lib string
	for _, tok := range strings.Fields(r.Output) {
		if strings.ContainsRune(tok, filepath.Separator) && strings.Contains(tok, "libstdc++") {
			lib = tok
			break
		}
	}
	if lib == "" {
		res.Error("Could not find path to libstdc++ in ldd output")
		return nil
	}

	current := filepath.Join(t.TmpDir, "current_symbols.txt")
	defer removeQuietly(current)
	if r := e.runCommand(ctx, res, e.abiCommand(t, extract, lib, current)); !r.Succeeded() {
		res.Error("Error extracting symbols")
		return nil
	}
	if !fileExists(current) {
		res.Error("No symbols extracted")
		return nil
	}

	r = e.runCommand(ctx, res, e.abiCommand(t, abiCheck, "--check-verbose", current, t.Path))
	if !r.Succeeded() {
		res.Error("Error comparing symbols to baseline")
		return nil
	}
	for _, line := range strings.Split(r.Output, "\n") {
		if !strings.HasPrefix(line, "# of ") {
			continue
		}
		_, count, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(count)); err == nil && n != 0 {
			res.Record(outcome.Fail, t.ID+" Changes against ABI baseline detected: "+strings.TrimSpace(line), outcome.ExpectUnset)
			return nil
		}
	}
	res.Record(outcome.Pass, t.ID, outcome.ExpectUnset)
	return nil
}

// abiCheckProgram returns the configured abi_check, building it in
// LibOutDir when none is configured.
func (e *Engine) abiCheckProgram(ctx context.Context, t Test, res *outcome.Result) (string, bool) {
	if e.ABICheck != "" {
		return e.ABICheck, true
	}
	if e.LibOutDir == "" {
		res.Error("No libstdc++ build directory, but no abi_check program either.")
		return "", false
	}
	req := e.abiCommand(t, "make", "abi_check")
	req.Dir = e.LibOutDir
	if r := e.runCommand(ctx, res, req); !r.Succeeded() {
		res.Error("Error building abi_check")
		return "", false
	}
	return filepath.Join(e.LibOutDir, "abi_check"), true
}

func (e *Engine) abiCommand(t Test, path string, args ...string) ExecRequest {
	dir := e.LibOutDir
	if dir == "" {
		dir = t.TmpDir
	}
	return ExecRequest{
		Path:    path,
		Args:    args,
		Env:     e.Env,
		Dir:     dir,
		Timeout: e.execTimeout(),
	}
}
