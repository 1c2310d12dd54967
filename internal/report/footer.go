package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eykd/dgrun/internal/outcome"
)

// WriteFooter prints a one-line console summary of s.
func WriteFooter(w io.Writer, s *Summary) error {
	_, err := fmt.Fprintf(w, "%s tests, %s passed, %s failed, %s errors, %s untested in %s\n",
		humanize.Comma(int64(s.Tests())),
		humanize.Comma(int64(s.Statuses[outcome.StatusPass])),
		humanize.Comma(int64(s.Statuses[outcome.StatusFail])),
		humanize.Comma(int64(s.Statuses[outcome.StatusError])),
		humanize.Comma(int64(s.Statuses[outcome.StatusUntested])),
		s.Elapsed.Round(time.Millisecond),
	)
	return err
}
