package prefix_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/eykd/dgrun/internal/prefix"
)

func newFixture() *prefix.Matcher {
	return prefix.New("foo", "bar", "foobar", "foobaz", "barbaz")
}

func assertMatch(t *testing.T, m *prefix.Matcher, query, want string) {
	t.Helper()
	got, ok := m.Match(query)
	if !ok {
		t.Fatalf("Match(%q): not found, want %q", query, want)
	}
	if got != want {
		t.Errorf("Match(%q) = %q, want %q", query, got, want)
	}
}

func assertNoMatch(t *testing.T, m *prefix.Matcher, query string) {
	t.Helper()
	if got, ok := m.Match(query); ok {
		t.Errorf("Match(%q) = %q, want not found", query, got)
	}
}

func TestMatcher_Empty(t *testing.T) {
	m := prefix.New()
	assertNoMatch(t, m, "foo")
	assertNoMatch(t, m, "")
}

func TestMatcher_ExactPrefixes(t *testing.T) {
	m := newFixture()
	for _, p := range m.Prefixes() {
		assertMatch(t, m, p, p)
	}
}

func TestMatcher_PrefixesPlusX(t *testing.T) {
	m := newFixture()
	for _, p := range m.Prefixes() {
		assertMatch(t, m, p+"X", p)
	}
}

func TestMatcher_Add(t *testing.T) {
	m := newFixture()
	assertMatch(t, m, "fooquux", "foo")
	m.Add("fooquux")
	assertMatch(t, m, "fooquux", "fooquux")
	assertMatch(t, m, "fooquuxblah", "fooquux")
}

func TestMatcher_Shorter(t *testing.T) {
	m := newFixture()
	assertMatch(t, m, "fooba", "foo")
	assertMatch(t, m, "barba", "bar")
	assertNoMatch(t, m, "fo")
	assertNoMatch(t, m, "ba")
}

func TestMatcher_OutsideAllRanges(t *testing.T) {
	m := newFixture()
	assertNoMatch(t, m, "xyzzy")
	assertNoMatch(t, m, "aaaaa")
}

func TestMatcher_Examples(t *testing.T) {
	m := prefix.New("foo", "foobar", "quux")
	assertMatch(t, m, "foobarbaz", "foobar")
	assertMatch(t, m, "fooba", "foo")
	assertMatch(t, m, "foo", "foo")
	assertNoMatch(t, m, "fo")
	assertMatch(t, m, "quuxz", "quux")
	assertNoMatch(t, m, "zzz")
}

func TestMatcher_EmptyPrefixMatchesEverything(t *testing.T) {
	m := prefix.New("", "g++.dg")
	assertMatch(t, m, "gcc.dg/x.c", "")
	assertMatch(t, m, "g++.dg/x.C", "g++.dg")
	assertMatch(t, m, "", "")
}

func TestMatcher_NonASCII(t *testing.T) {
	m := prefix.New("ü", "üb", "\U0010FFFF")
	assertMatch(t, m, "über", "üb")
	assertMatch(t, m, "üx", "ü")
	assertMatch(t, m, "\U0010FFFFabc", "\U0010FFFF")
	assertNoMatch(t, m, "u")
}

func TestMatcher_Duplicates(t *testing.T) {
	m := prefix.New("a", "a", "ab")
	if got := len(m.Prefixes()); got != 2 {
		t.Fatalf("got %d prefixes, want 2", got)
	}
	assertMatch(t, m, "abc", "ab")
}

// TestMatcher_AgreesWithLinearScan checks random prefix sets against a
// brute-force longest-prefix search.
func TestMatcher_AgreesWithLinearScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	randString := func(maxLen int) string {
		n := rng.IntN(maxLen + 1)
		var b strings.Builder
		for range n {
			b.WriteByte("ab\xfe\xff"[rng.IntN(4)])
		}
		return b.String()
	}

	for round := range 200 {
		var prefixes []string
		for range rng.IntN(12) {
			prefixes = append(prefixes, randString(4))
		}
		m := prefix.New(prefixes...)
		for range 50 {
			q := randString(6)
			want, wantOK := "", false
			for _, p := range prefixes {
				if strings.HasPrefix(q, p) && (!wantOK || len(p) > len(want)) {
					want, wantOK = p, true
				}
			}
			got, ok := m.Match(q)
			if ok != wantOK || got != want {
				t.Fatalf("round %d: prefixes %q, Match(%q) = (%q, %v), want (%q, %v)",
					round, prefixes, q, got, ok, want, wantOK)
			}
		}
	}
}

// TestMatcher_InvalidUTF8 verifies that distinct invalid bytes are not
// confused with each other.
func TestMatcher_InvalidUTF8(t *testing.T) {
	m := prefix.New("a\xff", "a")
	got, ok := m.Match("a\xfe/x.c")
	if !ok || got != "a" {
		t.Errorf("Match(%q) = (%q, %v), want (%q, true)", "a\xfe/x.c", got, ok, "a")
	}
	got, ok = m.Match("a\xff/x.c")
	if !ok || got != "a\xff" {
		t.Errorf("Match(%q) = (%q, %v), want (%q, true)", "a\xff/x.c", got, ok, "a\xff")
	}
	if got, ok := prefix.New("a\xff").Match("a\xfe/x.c"); ok {
		t.Errorf("Match returned %q, which is not a prefix", got)
	}
}

func TestTable_Lookup(t *testing.T) {
	tbl := prefix.NewTable(map[string]int{
		"g++.dg":       1,
		"g++.dg/pch":   2,
		"g++.old-deja": 3,
	})
	tests := []struct {
		query      string
		wantPrefix string
		want       int
		wantOK     bool
	}{
		{"g++.dg/template/x.C", "g++.dg", 1, true},
		{"g++.dg/pch/system-1.C", "g++.dg/pch", 2, true},
		{"g++.old-deja/g++.law/a.C", "g++.old-deja", 3, true},
		{"gcc.dg/a.c", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, v, ok := tbl.Lookup(tt.query)
			if ok != tt.wantOK || p != tt.wantPrefix || v != tt.want {
				t.Errorf("Lookup(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.query, p, v, ok, tt.wantPrefix, tt.want, tt.wantOK)
			}
		})
	}

	tbl.Set(map[string]int{"gcc.dg": 4})
	if _, v, ok := tbl.Lookup("gcc.dg/a.c"); !ok || v != 4 {
		t.Errorf("after Set, Lookup(gcc.dg/a.c) = (%d, %v), want (4, true)", v, ok)
	}
	if tbl.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tbl.Len())
	}
}
