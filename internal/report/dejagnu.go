package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/eykd/dgrun/internal/outcome"
)

type dejagnuWriter struct {
	w io.Writer
}

// WriteResult writes every entry of r as an "OUTCOME: message" line.
func (d *dejagnuWriter) WriteResult(r *outcome.Result) error {
	bw := bufio.NewWriter(d.w)
	for _, e := range r.Entries {
		if _, err := fmt.Fprintln(bw, e.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Close writes the summary block.
func (d *dejagnuWriter) Close(s *Summary) error {
	return WriteSummary(d.w, s.Counts)
}

// WriteSummary writes the DejaGNU "=== Summary ===" block. Outcomes with a
// zero count are omitted.
func WriteSummary(w io.Writer, c outcome.Counts) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "\n\t\t=== Summary ===\n")
	for _, o := range outcome.All {
		n := c[o]
		if n == 0 {
			continue
		}
		desc := "# of " + o.Description()
		bw.WriteString(desc)
		if len(desc) < 24 {
			bw.WriteString("\t")
		}
		fmt.Fprintf(bw, "\t%d\n", n)
	}
	return bw.Flush()
}
