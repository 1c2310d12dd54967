package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestClassifyCmd(t *testing.T) {
	m := newMockSuiteIO(t, nil)
	c := NewClassifyCmd(m)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{
		m.srcPath("gcc.dg/tls/alias-1.c"),
		"g++.dg/pch/system-1.C",
		"gcc.c-torture/x.c",
		"misc/x.cc",
	})

	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "gcc.dg/tls/alias-1.c\tgcc-dg-tls\n" +
		"g++.dg/pch/system-1.C\tg++-dg-pch\n" +
		"gcc.c-torture/x.c\tgcc-dg\n" +
		"misc/x.cc\tg++-dg\n"
	if out.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}
}

func TestClassifyCmd_JSON(t *testing.T) {
	m := newMockSuiteIO(t, nil)
	c := NewClassifyCmd(m)
	out := new(bytes.Buffer)
	c.SetOut(out)
	c.SetArgs([]string{"--json", "libstdc++-v3/testsuite/21_strings/a.cc"})

	if err := c.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []classifyJSON
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := classifyJSON{
		Path:     "libstdc++-v3/testsuite/21_strings/a.cc",
		Family:   "libstdc++",
		Prefix:   "libstdc++-v3/testsuite",
		Language: "c++",
	}
	if len(got) != 1 || got[0] != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestClassifyCmd_RequiresArgs(t *testing.T) {
	c := NewClassifyCmd(newMockSuiteIO(t, nil))
	c.SetOut(new(bytes.Buffer))
	c.SetErr(new(bytes.Buffer))
	c.SetArgs([]string{})
	if err := c.Execute(); err == nil {
		t.Error("expected error without paths")
	}
}
