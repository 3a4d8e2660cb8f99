package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// RenderMarkdown renders the summary as a GFM report document.
func RenderMarkdown(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Advisor failure report\n\n")
	fmt.Fprintf(&b, "Generated %s.\n\n", s.Generated.Format(time.DateTime))

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total attempts | %d |\n", s.TotalAttempts)
	fmt.Fprintf(&b, "| Succeeded | %d |\n", s.OKCount)
	fmt.Fprintf(&b, "| Failed | %d |\n", s.BadCount)
	fmt.Fprintf(&b, "| Failure rate | %.1f%% |\n\n", s.FailureRate()*100)

	b.WriteString("## Failures by stage\n\n")
	if len(s.FailuresByStage) == 0 {
		b.WriteString("No failed attempts recorded.\n\n")
	} else {
		b.WriteString("| Stage | Failures |\n|---|---|\n")
		for _, stage := range orderedStages(s.FailuresByStage) {
			fmt.Fprintf(&b, "| %s | %d |\n", stage, s.FailuresByStage[stage])
		}
		b.WriteString("\n")
	}

	if len(s.FailedAttempts) > 0 {
		b.WriteString("## Failed attempts\n\n")
		b.WriteString("| Time | Query | Filters | Stage | Reason |\n|---|---|---|---|---|\n")
		for _, a := range s.FailedAttempts {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				a.Timestamp.Format(time.DateTime),
				cellEscape(a.Query),
				cellEscape(a.Filters),
				a.Stage,
				cellEscape(failureReason(a)))
		}
		b.WriteString("\n")
	}

	if len(s.RatingCounts) > 0 {
		b.WriteString("## Feedback ratings\n\n")
		b.WriteString("| Rating | Count |\n|---|---|\n")
		for _, rating := range sortedRatings(s.RatingCounts) {
			fmt.Fprintf(&b, "| %s | %d |\n", rating, s.RatingCounts[rating])
		}
		b.WriteString("\n")
	}

	if len(s.Feedback) > 0 {
		b.WriteString("## Reported errors\n\n")
		found := false
		for _, f := range s.Feedback {
			if f.ErrorCategory == "" {
				continue
			}
			found = true
			fmt.Fprintf(&b, "- **%s**: %s (%s)\n",
				cellEscape(f.ErrorCategory), cellEscape(f.Query), cellEscape(f.Filters))
		}
		if !found {
			b.WriteString("No error categories reported.\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderHTML converts the markdown report to a standalone HTML page.
func RenderHTML(w io.Writer, markdown string) error {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return fmt.Errorf("converting markdown: %w", err)
	}

	tmpl, err := template.New("report").Parse(pageTemplate)
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}
	return tmpl.Execute(w, struct {
		Title   string
		Content template.HTML
	}{
		Title:   "Advisor failure report",
		Content: template.HTML(body.String()),
	})
}

// cellEscape makes a value safe inside a markdown table cell.
func cellEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func sortedRatings(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for r := range counts {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; max-width: 900px; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
h1, h2 { border-bottom: 1px solid #d8dee4; padding-bottom: .3rem; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d8dee4; padding: .4rem .8rem; text-align: left; }
th { background: #f6f8fa; }
tr:nth-child(even) td { background: #fafbfc; }
code { background: #f6f8fa; padding: .1rem .3rem; border-radius: 4px; }
</style>
</head>
<body>
{{.Content}}
</body>
</html>
`
