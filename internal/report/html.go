package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/eykd/dgrun/internal/outcome"
)

type htmlWriter struct {
	w       io.Writer
	results []*outcome.Result
}

func (h *htmlWriter) WriteResult(r *outcome.Result) error {
	h.results = append(h.results, r)
	return nil
}

// Close renders the run as markdown and converts it to a standalone page.
func (h *htmlWriter) Close(s *Summary) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(s, h.results)), &body); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	title := html.EscapeString("dgrun results for " + s.Target)
	_, err := fmt.Fprintf(h.w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		title, body.String())
	return err
}

// Markdown summarizes a run as a GitHub-flavored markdown document: the
// outcome counts, then a table of every test that did not pass.
func Markdown(s *Summary, results []*outcome.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# dgrun results for %s\n\n", cell(s.Target))
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`, started %s, took %s.\n\n", s.RunID, s.Started.UTC().Format("2006-01-02 15:04:05Z"), s.Elapsed)
	}

	b.WriteString("| Outcome | Count |\n|---|---:|\n")
	for _, o := range outcome.All {
		if n := s.Counts[o]; n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", o.Description(), n)
		}
	}

	var failing []*outcome.Result
	for _, r := range results {
		if !r.Passed() {
			failing = append(failing, r)
		}
	}
	if len(failing) == 0 {
		b.WriteString("\nAll tests passed.\n")
		return b.String()
	}
	b.WriteString("\n## Tests that did not pass\n\n| Test | Status | Cause |\n|---|---|---|\n")
	for _, r := range failing {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(r.ID), r.Status, cell(r.Cause))
	}
	return b.String()
}

// cell escapes text for a single markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "`", "\\`")
}
