// Package family describes the groups of tests a suite contains and picks
// the group each test belongs to by the longest matching path prefix.
package family

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/eykd/dgrun/internal/dg"
)

// Languages a profile can name. They select the compiler from the config.
const (
	LangC   = "c"
	LangCXX = "c++"
)

// Profile is the declarative form of a dg.Family. Built-in profiles cover
// the GCC and libstdc++ testsuites; a YAML file may add or replace them.
type Profile struct {
	Name            string   `yaml:"name"`
	Prefix          string   `yaml:"prefix"`
	Language        string   `yaml:"language"`
	DefaultOptions  string   `yaml:"default_options"`
	DefaultKind     dg.Kind  `yaml:"default_kind"`
	BasePrune       string   `yaml:"base_prune"`
	Prune           []string `yaml:"prune"`
	Directives      []string `yaml:"directives"`
	Finals          []string `yaml:"finals"`
	OptionSets      []string `yaml:"option_sets"`
	UseDebugOptions bool     `yaml:"use_debug_options"`
	LinkOptions     []string `yaml:"link_options"`
	RequiresTLS     bool     `yaml:"requires_tls"`
	PCHSuffix       string   `yaml:"pch_suffix"`
	TestExtensions  []string `yaml:"test_extensions"`
	// TestPattern further restricts tests to base names matching this
	// filepath.Match pattern.
	TestPattern string    `yaml:"test_pattern"`
	Feedback    *Feedback `yaml:"feedback"`
	Compat      bool      `yaml:"compat"`
	ABIBaseline bool      `yaml:"abi_baseline"`
}

// Feedback is the declarative form of dg.Feedback.
type Feedback struct {
	Generate string `yaml:"generate"`
	Use      string `yaml:"use"`
	DataExt  string `yaml:"data_ext"`
}

var (
	cExtensions   = []string{".c"}
	cxxExtensions = []string{".C", ".cc", ".cpp", ".cxx"}
	allDirectives = slices.Sorted(maps.Keys(dg.ExtraDirectives()))
)

// Builtin returns the built-in profiles.
func Builtin() []Profile {
	gcc := Profile{
		Language:       LangC,
		DefaultOptions: "-ansi -pedantic-errors",
		BasePrune:      PruneGCC,
		Directives:     allDirectives,
		TestExtensions: cExtensions,
	}
	gxx := Profile{
		Language:       LangCXX,
		DefaultOptions: "-ansi -pedantic-errors -Wno-long-long",
		BasePrune:      PruneGCC,
		Directives:     allDirectives,
		TestExtensions: cxxExtensions,
	}
	with := func(base Profile, name, prefix string, edit func(*Profile)) Profile {
		p := base
		p.Name, p.Prefix = name, prefix
		if edit != nil {
			edit(&p)
		}
		return p
	}

	return []Profile{
		with(gcc, "gcc-dg", "gcc.dg", nil),
		with(gcc, "gcc-dg-noncompile", "gcc.dg/noncompile", func(p *Profile) {
			p.DefaultOptions = ""
		}),
		with(gcc, "gcc-dg-tls", "gcc.dg/tls", func(p *Profile) { p.RequiresTLS = true }),
		with(gcc, "gcc-dg-pch", "gcc.dg/pch", func(p *Profile) {
			p.PCHSuffix = ".h"
			p.OptionSets = []string{"-O0 -g", "-O1", "-O2", "-O3"}
		}),
		with(gcc, "gcc-dg-debug", "gcc.dg/debug", func(p *Profile) { p.UseDebugOptions = true }),
		with(gcc, "gcc-gcov", "gcc.misc-tests/gcov", func(p *Profile) {
			p.DefaultOptions = "-fprofile-arcs -ftest-coverage"
			p.Finals = []string{"run-gcov"}
		}),
		with(gcc, "gcc-bprob", "gcc.misc-tests/bprob", withFeedback),
		with(gcc, "gcc-compat", "gcc.dg/compat", withCompat),
		with(gxx, "g++-dg", "g++.dg", nil),
		with(gxx, "g++-dg-tls", "g++.dg/tls", func(p *Profile) { p.RequiresTLS = true }),
		with(gxx, "g++-dg-pch", "g++.dg/pch", func(p *Profile) {
			p.PCHSuffix = ".H"
			p.OptionSets = []string{"-g", "-O2 -g", "-O2"}
		}),
		with(gxx, "g++-dg-debug", "g++.dg/debug", func(p *Profile) { p.UseDebugOptions = true }),
		with(gxx, "g++-gcov", "g++.dg/gcov", func(p *Profile) {
			p.DefaultOptions = "-fprofile-arcs -ftest-coverage"
			p.Finals = []string{"run-gcov"}
		}),
		with(gxx, "g++-bprob", "g++.dg/bprob", withFeedback),
		with(gxx, "g++-compat", "g++.dg/compat", withCompat),
		with(gxx, "g++-old-deja", "g++.old-deja", func(p *Profile) { p.Prune = OldDejaPrune }),
		with(gxx, "libstdc++", "libstdc++-v3/testsuite", func(p *Profile) {
			p.DefaultOptions = ""
			p.DefaultKind = dg.Run
			p.BasePrune = PruneV3
			p.LinkOptions = []string{"-lv3test"}
			p.TestExtensions = []string{".cc"}
		}),
		with(gxx, "libstdc++-abi", "libstdc++-v3/config/abi", func(p *Profile) {
			p.DefaultOptions = ""
			p.TestExtensions = []string{".txt"}
			p.TestPattern = dg.ABIBaselineFile
			p.ABIBaseline = true
		}),
	}
}

func withFeedback(p *Profile) {
	p.DefaultOptions = ""
	p.OptionSets = slices.Clone(dg.FeedbackOptionSets)
	p.Feedback = &Feedback{Generate: "-fprofile-arcs", Use: "-fbranch-probabilities", DataExt: ".gcda"}
}

func withCompat(p *Profile) {
	p.DefaultOptions = ""
	p.TestPattern = "*" + dg.CompatMain + ".*"
	p.Compat = true
}

// Family compiles p into the form the engine runs.
func (p *Profile) Family() (dg.Family, error) {
	prune, err := pruneFunc(p.BasePrune, p.Prune)
	if err != nil {
		return dg.Family{}, fmt.Errorf("family %s: %w", p.Name, err)
	}

	f := dg.Family{
		Name:            p.Name,
		Language:        p.Language,
		DefaultOptions:  p.DefaultOptions,
		DefaultKind:     p.DefaultKind,
		Prune:           prune,
		OptionSets:      slices.Clone(p.OptionSets),
		UseDebugOptions: p.UseDebugOptions,
		LinkOptions:     slices.Clone(p.LinkOptions),
		PCHSuffix:       p.PCHSuffix,
		RequiresTLS:     p.RequiresTLS,
		Compat:          p.Compat,
		ABIBaseline:     p.ABIBaseline,
	}
	if p.Feedback != nil {
		f.Feedback = &dg.Feedback{Generate: p.Feedback.Generate, Use: p.Feedback.Use, DataExt: p.Feedback.DataExt}
	}

	known := dg.ExtraDirectives()
	f.Directives = make(map[string]dg.Handler, len(p.Directives))
	for _, name := range p.Directives {
		h, ok := known[name]
		if !ok {
			return dg.Family{}, fmt.Errorf("family %s: unknown directive %q", p.Name, name)
		}
		f.Directives[name] = h
	}

	finals := dg.ExtraFinals()
	f.Finals = make(map[string]dg.FinalFunc, len(p.Finals))
	for _, name := range p.Finals {
		fn, ok := finals[name]
		if !ok {
			return dg.Family{}, fmt.Errorf("family %s: unknown final command %q", p.Name, name)
		}
		f.Finals[name] = fn
	}
	return f, nil
}

// IsTest reports whether a file with extension ext is a test of this family.
func (p *Profile) IsTest(ext string) bool {
	return slices.Contains(p.TestExtensions, ext)
}

// Accepts reports whether the file at path is a test of this family: its
// extension is a test extension and its base name matches TestPattern.
func (p *Profile) Accepts(path string) bool {
	if !p.IsTest(filepath.Ext(path)) {
		return false
	}
	if p.TestPattern == "" {
		return true
	}
	ok, _ := filepath.Match(p.TestPattern, filepath.Base(path))
	return ok
}

// modes counts the special engine modes p turns on.
func (p *Profile) modes() int {
	n := 0
	for _, on := range []bool{p.PCHSuffix != "", p.Feedback != nil, p.Compat, p.ABIBaseline} {
		if on {
			n++
		}
	}
	return n
}
