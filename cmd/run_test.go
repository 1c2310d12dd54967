package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const (
	passingTest = "/* { dg-do compile } */\nint x;\n"
	failingTest = "/* { dg-do compile } */\nint x; /* { dg-error \"oops\" } */\n"
	brokenTest  = "/* { dg-do frobnicate } */\n"
)

func executeRun(t *testing.T, m *mockSuiteIO, args ...string) (string, string, error) {
	t.Helper()
	c := NewRunCmd(m)
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	c.SetOut(out)
	c.SetErr(errOut)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), errOut.String(), err
}

func TestRunCmd_AllPass(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{
		"gcc.dg/a.c": passingTest,
		"g++.dg/b.C": passingTest,
	})

	out, errOut, err := executeRun(t, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"PASS: g++.dg/b.C (test for excess errors)\n",
		"PASS: gcc.dg/a.c (test for excess errors)\n",
		"# of expected passes\t\t2\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "2 tests, 2 passed, 0 failed") {
		t.Errorf("footer missing from stderr: %q", errOut)
	}
	if m.tool.compiles != 2 {
		t.Errorf("compiles = %d, want 2", m.tool.compiles)
	}
}

func TestRunCmd_FailureExitsNonZero(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{
		"gcc.dg/a.c":      passingTest,
		"gcc.dg/bad.c":    failingTest,
		"gcc.dg/broken.c": brokenTest,
	})

	out, _, err := executeRun(t, m)
	if err == nil {
		t.Fatal("expected error when tests fail")
	}
	if err.Error() != "2 of 3 tests failed" {
		t.Errorf("error = %q", err)
	}
	if !strings.Contains(out, "FAIL: gcc.dg/bad.c") {
		t.Errorf("stdout missing FAIL line:\n%s", out)
	}
	if !strings.Contains(out, "UNRESOLVED: directive error at line 1") {
		t.Errorf("stdout missing UNRESOLVED line:\n%s", out)
	}
}

func TestRunCmd_Paths(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{
		"gcc.dg/a.c":   passingTest,
		"gcc.dg/bad.c": failingTest,
	})

	out, _, err := executeRun(t, m, m.srcPath("gcc.dg/a.c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "bad.c") {
		t.Errorf("only the named test should run:\n%s", out)
	}
}

func TestRunCmd_JSONFormat(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{"gcc.dg/a.c": passingTest})

	out, _, err := executeRun(t, m, "--format", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Results []struct {
			ID     string `json:"id"`
			Family string `json:"family"`
			Status string `json:"status"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(got.Results) != 1 || got.Results[0].ID != "gcc.dg/a.c" || got.Results[0].Family != "gcc-dg" || got.Results[0].Status != "PASS" {
		t.Errorf("results = %+v", got.Results)
	}
}

func TestRunCmd_History(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{"gcc.dg/a.c": passingTest})

	if _, _, err := executeRun(t, m, "--history"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := m.OpenHistory(m.cfg.History)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer h.Close()
	runs, err := h.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Tests != 1 || runs[0].Failed != 0 || runs[0].FinishedAt == nil {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunCmd_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *mockSuiteIO)
		args  []string
		want  string
	}{
		{"bad format", nil, []string{"--format", "xml"}, `unknown format "xml"`},
		{"config error", func(m *mockSuiteIO) { m.cfgErr = errors.New("boom") }, nil, "loading config: boom"},
		{"families error", func(m *mockSuiteIO) { m.famErr = errors.New("bad yaml") }, nil, "loading families: bad yaml"},
		{"probe error", func(m *mockSuiteIO) { m.probeErr = errors.New("no tmp") }, nil, "probing c compiler: no tmp"},
		{"unknown family", nil, []string{"--family", "ada"}, `unknown family "ada"`},
		{"no history configured", func(m *mockSuiteIO) { m.cfg.History = "" }, []string{"--history"}, "no history database configured"},
		{"no tests", func(m *mockSuiteIO) { m.cfg.SrcDir = m.cfg.TmpDir }, nil, "no tests found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockSuiteIO(t, map[string]string{"gcc.dg/a.c": passingTest})
			if tt.setup != nil {
				tt.setup(m)
			}
			_, _, err := executeRun(t, m, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
