package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
)

func executeScan(t *testing.T, m *mockSuiteIO, args ...string) (scanOutput, string, error) {
	t.Helper()
	c := NewScanCmd(m)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetErr(new(bytes.Buffer))
	c.SetArgs(args)
	err := c.Execute()

	var got scanOutput
	if out.Len() > 0 {
		if jerr := json.Unmarshal(out.Bytes(), &got); jerr != nil {
			t.Fatalf("invalid JSON: %v\n%s", jerr, out)
		}
	}
	return got, out.String(), err
}

func TestScanCmd_Plan(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{
		"gcc.dg/a.c": "/* { dg-do run { target native } } */\n" +
			"/* { dg-options \"-O2\" } */\n" +
			"int x = ; /* { dg-error \"expected\" } */\n",
	})

	got, _, err := executeScan(t, m, m.srcPath("gcc.dg/a.c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != "1" || got.Test != "gcc.dg/a.c" || got.Family != "gcc-dg" {
		t.Errorf("header = %+v", got)
	}
	if got.Plan.Kind != "run" || got.Plan.Options != "-O2" {
		t.Errorf("plan kind/options = %q/%q", got.Plan.Kind, got.Plan.Options)
	}
	if len(got.Plan.Diagnostics) != 1 || got.Plan.Diagnostics[0].Line != 3 || got.Plan.Diagnostics[0].Pattern != "expected" {
		t.Errorf("diagnostics = %+v", got.Plan.Diagnostics)
	}
	if got.Error != nil {
		t.Errorf("unexpected scan error: %+v", got.Error)
	}
}

func TestScanCmd_TargetFlag(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{
		"gcc.dg/a.c": "/* { dg-do run { target arm-*-* } } */\n",
	})

	got, _, err := executeScan(t, m, "--target", "arm-none-eabi", m.srcPath("gcc.dg/a.c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Plan.Unsupported() || got.Plan.Kind != "run" {
		t.Errorf("arm target should select the test: %+v", got.Plan)
	}

	got, _, err = executeScan(t, m, m.srcPath("gcc.dg/a.c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Plan.Unsupported() {
		t.Errorf("x86_64 target should not select the test: %+v", got.Plan)
	}
}

func TestScanCmd_ForcedFamily(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{"misc/a.c": "int x;\n"})

	got, _, err := executeScan(t, m, "--family", "libstdc++", m.srcPath("misc/a.c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Family != "libstdc++" || got.Plan.Kind != "run" {
		t.Errorf("got family %q kind %q", got.Family, got.Plan.Kind)
	}
}

func TestScanCmd_DirectiveError(t *testing.T) {
	m := newMockSuiteIO(t, map[string]string{
		"gcc.dg/a.c": "int x;\n/* { dg-do frobnicate } */\n",
	})

	got, _, err := executeScan(t, m, m.srcPath("gcc.dg/a.c"))
	if err == nil {
		t.Fatal("expected error for a bad directive")
	}
	if got.Error == nil || got.Error.Class != "directive" || got.Error.Line != 2 {
		t.Errorf("error = %+v", got.Error)
	}
}

func TestScanCmd_MissingFile(t *testing.T) {
	m := newMockSuiteIO(t, nil)

	got, _, err := executeScan(t, m, m.srcPath("gcc.dg/none.c"))
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
	if got.Error == nil || got.Error.Class != "io" {
		t.Errorf("error = %+v", got.Error)
	}
}

func TestTestID(t *testing.T) {
	m := newMockSuiteIO(t, nil)
	tests := []struct {
		path string
		want string
	}{
		{m.srcPath("gcc.dg/a.c"), "gcc.dg/a.c"},
		{"g++.dg/b.C", "g++.dg/b.C"},
		{"/elsewhere/x.c", "/elsewhere/x.c"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := testID(m.cfg.SrcDir, tt.path); got != tt.want {
				t.Errorf("testID(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
