package selector_test

import (
	"testing"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/selector"
)

var linux = selector.Platform{Target: "x86_64-unknown-linux-gnu"}

// TestEvaluate verifies selector evaluation across target and xfail forms.
func TestEvaluate(t *testing.T) {
	cross := selector.Platform{Target: "arm-none-eabi", Build: "x86_64-pc-linux-gnu"}

	tests := []struct {
		name string
		sel  string
		p    selector.Platform
		want selector.Verdict
	}{
		{"target glob matches", "target x86_64-*-linux*", linux, selector.Selected},
		{"target glob misses", "target arm*-*-*", linux, selector.NotSelected},
		{"xfail misses", "xfail arm*-*-*", linux, selector.ExpectPass},
		{"xfail matches", "xfail *-*-linux-gnu", linux, selector.ExpectFail},
		{"native when build defaults", "target native", linux, selector.Selected},
		{"native on cross", "target native", cross, selector.NotSelected},
		{"any pattern matches", "target sparc-*-* arm-*-*", cross, selector.Selected},
		{"question mark", "target x86_6?-*", linux, selector.Selected},
		{"character class", "target [ax]*-*-*", linux, selector.Selected},
		{"negated class", "target [!x]*", linux, selector.NotSelected},
		{"no patterns", "target", linux, selector.NotSelected},
		{"surrounding space from braces", " target *-*-* ", linux, selector.Selected},
		{"tabs", "xfail\t*-*-*", linux, selector.ExpectFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selector.Evaluate(tt.sel, tt.p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.sel, got, tt.want)
			}
		})
	}
}

// TestEvaluate_InvalidKeyword verifies that only target and xfail are accepted.
func TestEvaluate_InvalidKeyword(t *testing.T) {
	for _, sel := range []string{"bogus foo", "", "   ", "Target *"} {
		_, err := selector.Evaluate(sel, linux)
		if err == nil {
			t.Errorf("Evaluate(%q): expected error, got nil", sel)
			continue
		}
		if !dgerr.Is(err, dgerr.Selector) {
			t.Errorf("Evaluate(%q): error class %q, want %q", sel, dgerr.ClassOf(err), dgerr.Selector)
		}
	}
}

func TestPlatform_Native(t *testing.T) {
	if !linux.Native() {
		t.Error("platform with empty Build should be native")
	}
	if got := linux.BuildTriple(); got != linux.Target {
		t.Errorf("BuildTriple() = %q, want %q", got, linux.Target)
	}
	p := selector.Platform{Target: "a", Build: "b"}
	if p.Native() {
		t.Error("differing triples should not be native")
	}
}

func TestVerdict_String(t *testing.T) {
	want := map[selector.Verdict]string{
		selector.Selected:    "S",
		selector.NotSelected: "N",
		selector.ExpectFail:  "F",
		selector.ExpectPass:  "P",
		selector.Verdict(0):  "?",
	}
	for v, s := range want {
		if v.String() != s {
			t.Errorf("Verdict(%d).String() = %q, want %q", int(v), v.String(), s)
		}
	}
}
