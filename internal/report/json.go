package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/eykd/dgrun/internal/outcome"
)

type jsonWriter struct {
	w       io.Writer
	results []*outcome.Result
}

// jsonReport is the document written by the json format.
type jsonReport struct {
	RunID    string                 `json:"runId,omitempty"`
	Target   string                 `json:"target"`
	Started  time.Time              `json:"started"`
	Elapsed  string                 `json:"elapsed"`
	Counts   outcome.Counts         `json:"counts"`
	Statuses map[outcome.Status]int `json:"statuses"`
	Results  []*outcome.Result      `json:"results"`
}

func (j *jsonWriter) WriteResult(r *outcome.Result) error {
	j.results = append(j.results, r)
	return nil
}

func (j *jsonWriter) Close(s *Summary) error {
	results := j.results
	if results == nil {
		results = []*outcome.Result{}
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		RunID:    s.RunID,
		Target:   s.Target,
		Started:  s.Started.UTC(),
		Elapsed:  s.Elapsed.String(),
		Counts:   s.Counts,
		Statuses: s.Statuses,
		Results:  results,
	})
}
