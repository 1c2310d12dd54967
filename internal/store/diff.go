package store

import (
	"context"
	"slices"
	"strings"

	"github.com/eykd/dgrun/internal/outcome"
)

// Change is a test whose status differs between two runs.
type Change struct {
	TestID string         `json:"testId"`
	Old    outcome.Status `json:"old"`
	New    outcome.Status `json:"new"`
}

// Diff compares two runs. Tests present in only one run are ignored.
type Diff struct {
	// Regressions passed in the old run and no longer pass.
	Regressions []Change `json:"regressions"`
	// Fixes did not pass in the old run and pass now.
	Fixes []Change `json:"fixes"`
}

// Diff compares the results of oldID and newID.
func (s *Store) Diff(ctx context.Context, oldID, newID string) (*Diff, error) {
	oldResults, err := s.Results(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newResults, err := s.Results(ctx, newID)
	if err != nil {
		return nil, err
	}
	return Compare(oldResults, newResults), nil
}

// Compare lists the status transitions between two sets of results.
func Compare(oldResults, newResults []*outcome.Result) *Diff {
	before := make(map[string]outcome.Status, len(oldResults))
	for _, r := range oldResults {
		before[r.ID] = r.Status
	}

	d := &Diff{Regressions: []Change{}, Fixes: []Change{}}
	for _, r := range newResults {
		old, ok := before[r.ID]
		if !ok {
			continue
		}
		c := Change{TestID: r.ID, Old: old, New: r.Status}
		switch {
		case old == outcome.StatusPass && r.Status != outcome.StatusPass:
			d.Regressions = append(d.Regressions, c)
		case old != outcome.StatusPass && r.Status == outcome.StatusPass:
			d.Fixes = append(d.Fixes, c)
		}
	}
	byID := func(a, b Change) int { return strings.Compare(a.TestID, b.TestID) }
	slices.SortFunc(d.Regressions, byID)
	slices.SortFunc(d.Fixes, byID)
	return d
}
