// Package report renders test results as a DejaGNU log, JSON or HTML.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/eykd/dgrun/internal/outcome"
)

// Formats accepted by New.
const (
	FormatDejaGNU = "dejagnu"
	FormatJSON    = "json"
	FormatHTML    = "html"
)

// Formats lists every format New accepts.
var Formats = []string{FormatDejaGNU, FormatJSON, FormatHTML}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Target   string
	Started  time.Time
	Elapsed  time.Duration
	Counts   outcome.Counts
	Statuses map[outcome.Status]int
}

// NewSummary returns an empty summary for a run starting now.
func NewSummary(runID, target string, started time.Time) *Summary {
	return &Summary{
		RunID:    runID,
		Target:   target,
		Started:  started,
		Counts:   outcome.Counts{},
		Statuses: map[outcome.Status]int{},
	}
}

// Add folds one result into the summary.
func (s *Summary) Add(r *outcome.Result) {
	s.Counts.Add(r)
	s.Statuses[r.Status]++
}

// Tests returns the number of results added.
func (s *Summary) Tests() int {
	n := 0
	for _, v := range s.Statuses {
		n += v
	}
	return n
}

// Failed reports whether any test failed or could not be interpreted.
func (s *Summary) Failed() bool {
	return s.Statuses[outcome.StatusFail] > 0 || s.Statuses[outcome.StatusError] > 0
}

// Writer receives results as they finish and the summary at the end.
type Writer interface {
	WriteResult(r *outcome.Result) error
	Close(s *Summary) error
}

// New returns a Writer for format that writes to w.
func New(format string, w io.Writer) (Writer, error) {
	switch format {
	case "", FormatDejaGNU:
		return &dejagnuWriter{w: w}, nil
	case FormatJSON:
		return &jsonWriter{w: w}, nil
	case FormatHTML:
		return &htmlWriter{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
