package outcome

import (
	"strings"
	"time"
)

// Entry is one recorded verdict, rendered as "OUTCOME: message".
type Entry struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// String renders the entry the way DejaGNU logs it.
func (e Entry) String() string {
	return string(e.Outcome) + ": " + e.Message
}

// Command is one external command run on behalf of a test.
type Command struct {
	Argv   []string `json:"argv"`
	Status int      `json:"status,omitempty"`
	Output string   `json:"output,omitempty"`
}

// Line returns the command as a single space-joined line.
func (c Command) Line() string {
	return strings.Join(c.Argv, " ")
}

// Result accumulates the verdicts of a single test. The zero value is not
// usable; call NewResult.
type Result struct {
	ID       string        `json:"id"`
	Family   string        `json:"family,omitempty"`
	Status   Status        `json:"status"`
	Cause    string        `json:"cause,omitempty"`
	Entries  []Entry       `json:"entries"`
	Commands []Command     `json:"commands,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NewResult returns a passing Result with no entries.
func NewResult(id string) *Result {
	return &Result{ID: id, Status: StatusPass, Entries: []Entry{}}
}

// Record flips o by e, appends the entry, and lets the first non-passing
// verdict fix the test status and cause. It returns the recorded outcome.
func (r *Result) Record(o Outcome, message string, e Expectation) Outcome {
	o = Flip(o, e)
	r.Entries = append(r.Entries, Entry{Outcome: o, Message: message})
	if st, ok := o.Status(); ok && r.Status == StatusPass {
		r.Status = st
		r.Cause = message
	}
	return o
}

// SetStatus overrides the status of a test that is still passing. It is used
// for results decided before any verdict, such as an unavailable feature.
func (r *Result) SetStatus(st Status, cause string) {
	if r.Status != StatusPass {
		return
	}
	r.Status = st
	r.Cause = cause
}

// Error records an UNRESOLVED entry for a test the engine could not
// interpret and marks the test as an error.
func (r *Result) Error(message string) {
	r.Entries = append(r.Entries, Entry{Outcome: Unresolved, Message: message})
	if r.Status == StatusPass {
		r.Status = StatusError
		r.Cause = message
	}
}

// RecordCommand appends argv to the command log and returns its index for
// RecordCommandOutput.
func (r *Result) RecordCommand(argv []string) int {
	r.Commands = append(r.Commands, Command{Argv: append([]string(nil), argv...)})
	return len(r.Commands) - 1
}

// RecordCommandOutput attaches the exit status and output to a logged command.
func (r *Result) RecordCommandOutput(index, status int, output string) {
	if index < 0 || index >= len(r.Commands) {
		return
	}
	r.Commands[index].Status = status
	r.Commands[index].Output = output
}

// Passed reports whether the test still has a passing status.
func (r *Result) Passed() bool {
	return r.Status == StatusPass
}

// Counts tallies entries by outcome.
type Counts map[Outcome]int

// Add tallies every entry of r.
func (c Counts) Add(r *Result) {
	for _, e := range r.Entries {
		c[e.Outcome]++
	}
}

// Total returns the number of tallied entries.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
