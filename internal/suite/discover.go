// Package suite finds the tests under a testsuite root and runs them
// through the dg engine of their family.
package suite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/eykd/dgrun/internal/family"
)

// Test is one discovered test source.
type Test struct {
	ID      string // slash-separated path relative to the suite root
	Path    string
	Profile *family.Profile
}

// Discover returns the tests under root, sorted by ID. With paths, only
// those files and directories are searched; they must lie under root. A
// non-empty force names the profile every test is run with.
func Discover(root string, paths []string, reg *family.Registry, force string) ([]Test, error) {
	var forced *family.Profile
	if force != "" {
		p, ok := reg.Lookup(force)
		if !ok {
			return nil, fmt.Errorf("unknown family %q", force)
		}
		forced = p
	}
	if len(paths) == 0 {
		paths = []string{root}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var tests []Test
	for _, p := range paths {
		found, err := discoverPath(absRoot, p, reg, forced)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			if !seen[t.ID] {
				seen[t.ID] = true
				tests = append(tests, t)
			}
		}
	}
	slices.SortFunc(tests, func(a, b Test) int { return strings.Compare(a.ID, b.ID) })
	return tests, nil
}

func discoverPath(root, path string, reg *family.Registry, forced *family.Profile) ([]Test, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if rel, err := filepath.Rel(root, abs); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s is outside the testsuite root %s", path, root)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		t, ok, err := classify(root, abs, reg, forced)
		if err != nil || !ok {
			return nil, err
		}
		return []Test{t}, nil
	}

	var tests []Test
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		t, ok, err := classify(root, p, reg, forced)
		if err != nil {
			return err
		}
		if ok {
			tests = append(tests, t)
		}
		return nil
	})
	return tests, err
}

// classify builds the Test for path, reporting false for files that are
// not tests of their family.
func classify(root, path string, reg *family.Registry, forced *family.Profile) (Test, bool, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return Test{}, false, err
	}
	id := filepath.ToSlash(rel)
	p := forced
	if p == nil {
		if p, err = reg.Classify(id); err != nil {
			return Test{}, false, err
		}
	}
	if !p.Accepts(path) {
		return Test{}, false, nil
	}
	return Test{ID: id, Path: path, Profile: p}, true, nil
}
