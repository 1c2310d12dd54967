package family

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/prefix"
)

// Names of the profiles used for paths no prefix claims.
const (
	FallbackC   = "gcc-dg"
	FallbackCXX = "g++-dg"
)

// file is the on-disk form of a profile override file.
type file struct {
	Families []Profile `yaml:"families"`
}

// Registry holds the known profiles and classifies test paths.
type Registry struct {
	byName map[string]*Profile
	table  *prefix.Table[*Profile]
}

// NewRegistry validates profiles and indexes them by name and prefix.
// Later profiles replace earlier ones of the same name.
func NewRegistry(profiles []Profile) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Profile, len(profiles))}
	for i := range profiles {
		p := profiles[i]
		if err := validate(&p); err != nil {
			return nil, err
		}
		r.byName[p.Name] = &p
	}

	entries := make(map[string]*Profile, len(r.byName))
	for _, p := range r.byName {
		key := prefixKey(p.Prefix)
		if prev, ok := entries[key]; ok {
			return nil, dgerr.Newf(dgerr.Config, "families %s and %s share prefix %q", prev.Name, p.Name, p.Prefix)
		}
		entries[key] = p
	}
	r.table = prefix.NewTable(entries)
	return r, nil
}

func validate(p *Profile) error {
	switch {
	case p.Name == "":
		return dgerr.New(dgerr.Config, "family without a name")
	case p.Prefix == "":
		return dgerr.Newf(dgerr.Config, "family %s: prefix is required", p.Name)
	case p.Language != LangC && p.Language != LangCXX:
		return dgerr.Newf(dgerr.Config, "family %s: unknown language %q", p.Name, p.Language)
	}
	if p.DefaultKind != "" {
		if _, ok := dg.ParseKind(string(p.DefaultKind)); !ok {
			return dgerr.Newf(dgerr.Config, "family %s: unknown default_kind %q", p.Name, p.DefaultKind)
		}
	}
	if p.modes() > 1 {
		return dgerr.Newf(dgerr.Config, "family %s: pch_suffix, feedback, compat and abi_baseline are exclusive", p.Name)
	}
	if p.Feedback != nil && (p.Feedback.Generate == "" || p.Feedback.Use == "" || p.Feedback.DataExt == "") {
		return dgerr.Newf(dgerr.Config, "family %s: feedback needs generate, use and data_ext", p.Name)
	}
	if _, err := filepath.Match(p.TestPattern, ""); err != nil {
		return dgerr.Wrap(dgerr.Config, "family "+p.Name+": bad test_pattern", err)
	}
	if len(p.TestExtensions) == 0 {
		if p.Language == LangC {
			p.TestExtensions = cExtensions
		} else {
			p.TestExtensions = cxxExtensions
		}
	}
	if _, err := p.Family(); err != nil {
		return dgerr.Wrap(dgerr.Config, "invalid family", err)
	}
	return nil
}

// prefixKey anchors a prefix at a path component boundary so gcc.dg does
// not claim gcc.dgx/.
func prefixKey(p string) string {
	return strings.TrimSuffix(path.Clean(filepath.ToSlash(p)), "/") + "/"
}

// Default returns a registry of the built-in profiles.
func Default() *Registry {
	r, err := NewRegistry(Builtin())
	if err != nil {
		panic(err)
	}
	return r
}

// Load returns the built-in profiles overlaid with those in the YAML file
// at path. An empty path yields the built-ins alone.
func Load(path string) (*Registry, error) {
	profiles := Builtin()
	if path == "" {
		return NewRegistry(profiles)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading families: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, dgerr.Wrap(dgerr.Config, "parse families "+path, err)
	}
	if len(f.Families) == 0 {
		return nil, dgerr.Newf(dgerr.Config, "%s defines no families", path)
	}
	return NewRegistry(append(profiles, f.Families...))
}

// Lookup returns the profile called name.
func (r *Registry) Lookup(name string) (*Profile, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Profiles returns every profile, sorted by name.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Profile) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// ErrNoFamily is returned by Classify when neither a prefix nor a fallback
// applies.
var ErrNoFamily = errors.New("no family for path")

// Classify returns the profile for rel, a path relative to the suite root.
// The longest matching prefix wins; otherwise .c files fall back to gcc-dg
// and everything else to g++-dg.
func (r *Registry) Classify(rel string) (*Profile, error) {
	rel = filepath.ToSlash(rel)
	if _, p, ok := r.table.Lookup(rel); ok {
		return p, nil
	}
	name := FallbackCXX
	if path.Ext(rel) == ".c" {
		name = FallbackC
	}
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoFamily, rel)
}
