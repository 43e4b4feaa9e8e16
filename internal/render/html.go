package render

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/joestump/docmerge/internal/document"
)

const pageStyle = `body{font-family:Georgia,serif;font-size:11pt;line-height:1.5;margin:0}` +
	`p{margin:0 0 0.6em}table{border-collapse:collapse}td{border:1px solid #999;padding:2px 6px}`

// toHTML builds a printable, sanitized HTML page from doc. HTML sources are
// sanitized and kept; other formats are converted from their extracted text,
// one paragraph per line.
func toHTML(ctx context.Context, policy *bluemonday.Policy, doc document.Document) (string, error) {
	var body string
	if isHTML(doc) {
		body = policy.Sanitize(string(doc.Data))
	} else {
		text, err := document.Extract(ctx, doc)
		if err != nil {
			return "", err
		}
		f, _ := doc.Format()
		body = textToHTML(text, f == document.FormatXLSX)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(doc.Name))
	b.WriteString("</title><style>")
	b.WriteString(pageStyle)
	b.WriteString("</style></head><body>")
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String(), nil
}

func isHTML(doc document.Document) bool {
	ct := strings.ToLower(doc.ContentType)
	if strings.HasPrefix(ct, "text/html") {
		return true
	}
	name := strings.ToLower(doc.Name)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

// textToHTML escapes text into paragraphs, or into a table when the text
// came from a spreadsheet (tab-separated cells).
func textToHTML(text string, tabular bool) string {
	var b strings.Builder
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if tabular {
		b.WriteString("<table>")
		for _, line := range lines {
			b.WriteString("<tr>")
			for _, cell := range strings.Split(line, "\t") {
				b.WriteString("<td>")
				b.WriteString(html.EscapeString(cell))
				b.WriteString("</td>")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</table>")
		return b.String()
	}
	for _, line := range lines {
		b.WriteString("<p>")
		if line == "" {
			b.WriteString("&nbsp;")
		} else {
			b.WriteString(html.EscapeString(line))
		}
		b.WriteString("</p>")
	}
	return b.String()
}
