package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Write renders s in the format implied by the extension of path: .md,
// .html/.htm or .json.
func Write(path string, s Summary) error {
	var (
		data []byte
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		data = Markdown(s)
	case ".html", ".htm":
		data, err = HTML(s)
	case ".json":
		data, err = json.MarshalIndent(s, "", "  ")
	default:
		return fmt.Errorf("unsupported report format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Markdown renders s as a GitHub flavoured markdown document.
func Markdown(s Summary) []byte {
	var b bytes.Buffer

	verdict := "PASSED"
	if !s.OK() {
		verdict = "FAILED"
	}

	fmt.Fprintf(&b, "# Test run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "**%s**: %d passed, %d failed, %d skipped in %s\n\n",
		verdict, s.Passed, s.Failed, s.Skipped, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Started %s\n\n", s.Started.Format(time.RFC3339))

	if len(s.Tests) > 0 {
		b.WriteString("| Status | Test | Package | Duration |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, t := range s.Tests {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				statusBadge(t.Status), cell(t.Name), cell(t.Package), t.Duration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	var failures []TestResult
	for _, t := range s.Tests {
		if t.Status == StatusFail {
			failures = append(failures, t)
		}
	}
	if len(failures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, t := range failures {
			fmt.Fprintf(&b, "### %s\n\n", t.Name)
			writeOutput(&b, t.Output)
		}
	}

	for _, p := range s.Packages {
		if p.Status != StatusFail {
			continue
		}
		name := p.Name
		if name == "" {
			name = "go command"
		}
		fmt.Fprintf(&b, "## Package %s failed\n\n", name)
		writeOutput(&b, p.Output)
	}

	return b.Bytes()
}

// HTML renders the markdown report into a standalone HTML page.
func HTML(s Summary) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)

	var body bytes.Buffer
	if err := md.Convert(Markdown(s), &body); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, htmlHeader, s.RunID)
	page.Write(body.Bytes())
	page.WriteString(htmlFooter)
	return page.Bytes(), nil
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Test run %s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; }
pre { background: #f6f8fa; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`

func statusBadge(s Status) string {
	switch s {
	case StatusPass:
		return "✓ pass"
	case StatusFail:
		return "✗ fail"
	case StatusSkip:
		return "- skip"
	}
	return string(s)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeOutput(b *bytes.Buffer, out string) {
	out = strings.TrimRight(out, "\n")
	if out == "" {
		b.WriteString("_no output_\n\n")
		return
	}
	fence := "```"
	for strings.Contains(out, fence) {
		fence += "`"
	}
	fmt.Fprintf(b, "%s\n%s\n%s\n\n", fence, out, fence)
}
