// Package export turns a finished draft into downloadable artifacts: a
// plain-text stream and an HTML page built from a structural markdown
// conversion. The conversion is intentionally partial, not a CommonMark
// implementation.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"sowforge/internal/domain"
)

var (
	boldRE   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRE = regexp.MustCompile(`\*(.*?)\*`)
	unsafeRE = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// HTML converts markdown into an HTML fragment. Supported constructs:
// #/##/### headings, **bold**, *italic*, "- " bullet runs wrapped in a
// single list, fenced code blocks, pipe tables (first line headers, second
// line separator skipped), blank-line paragraph breaks and single-newline
// line breaks.
func HTML(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var out []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "```"):
			var code []string
			i++
			for i < len(lines) && !strings.HasPrefix(lines[i], "```") {
				code = append(code, lines[i])
				i++
			}
			i++ // closing fence
			out = append(out, "<pre><code>"+strings.Join(code, "\n")+"</code></pre>")
		case strings.HasPrefix(line, "### "):
			out = append(out, "<h3>"+inline(line[4:])+"</h3>")
			i++
		case strings.HasPrefix(line, "## "):
			out = append(out, "<h2>"+inline(line[3:])+"</h2>")
			i++
		case strings.HasPrefix(line, "# "):
			out = append(out, "<h1>"+inline(line[2:])+"</h1>")
			i++
		case strings.HasPrefix(line, "- "):
			var items []string
			for i < len(lines) && strings.HasPrefix(lines[i], "- ") {
				items = append(items, "<li>"+inline(lines[i][2:])+"</li>")
				i++
			}
			out = append(out, "<ul>"+strings.Join(items, "")+"</ul>")
		case strings.HasPrefix(line, "|"):
			var rows []string
			for i < len(lines) && strings.Contains(lines[i], "|") {
				rows = append(rows, lines[i])
				i++
			}
			out = append(out, table(rows))
		case strings.TrimSpace(line) == "":
			i++
		default:
			var para []string
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" &&
				!strings.HasPrefix(lines[i], "#") && !strings.HasPrefix(lines[i], "- ") &&
				!strings.HasPrefix(lines[i], "|") && !strings.HasPrefix(lines[i], "```") {
				para = append(para, inline(strings.TrimRight(lines[i], " ")))
				i++
			}
			out = append(out, "<p>"+strings.Join(para, "<br>")+"</p>")
		}
	}
	return strings.Join(out, "\n")
}

// table renders a pipe-table run. The first line is the header row; the
// second line is assumed to be the separator and skipped.
func table(lines []string) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, h := range cells(lines[0]) {
		b.WriteString("<th>" + inline(h) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for i := 2; i < len(lines); i++ {
		b.WriteString("<tr>")
		for _, c := range cells(lines[i]) {
			b.WriteString("<td>" + inline(c) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func cells(line string) []string {
	var out []string
	for _, c := range strings.Split(line, "|") {
		if t := strings.TrimSpace(c); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// inline applies bold before italic so ** pairs are not consumed as two
// single stars.
func inline(s string) string {
	s = boldRE.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRE.ReplaceAllString(s, "<em>$1</em>")
	return s
}

// Text renders a plain-text download: title, underline, meta lines, then
// the raw markdown body.
func Text(doc domain.DocumentDraft) string {
	var b strings.Builder
	b.WriteString(doc.Meta.Title + "\n")
	b.WriteString(strings.Repeat("=", len(doc.Meta.Title)) + "\n\n")
	fmt.Fprintf(&b, "Client: %s\n", doc.Meta.ClientName)
	fmt.Fprintf(&b, "Date: %s\n\n", doc.Meta.CreatedAt)
	b.WriteString(doc.Markdown)
	return b.String()
}

// Document wraps the converted markdown in a full print-friendly HTML page.
func Document(doc domain.DocumentDraft) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", doc.Meta.Title)
	b.WriteString(`<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; max-width: 800px; margin: 40px auto; padding: 20px; line-height: 1.6; }
h1 { font-size: 28px; margin-top: 40px; color: #1a1a1a; }
h2 { font-size: 22px; margin-top: 32px; color: #2a2a2a; border-bottom: 2px solid #e5e5e5; padding-bottom: 8px; }
h3 { font-size: 18px; margin-top: 24px; color: #3a3a3a; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f5f5f5; font-weight: 600; }
pre { background: #f5f5f5; padding: 16px; border-radius: 4px; overflow-x: auto; }
.header { border-bottom: 3px solid #4f46e5; padding-bottom: 20px; margin-bottom: 40px; }
.meta { color: #666; font-size: 14px; }
</style>
</head>
<body>
`)
	b.WriteString("<div class=\"header\">\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", doc.Meta.Title)
	b.WriteString("<div class=\"meta\">\n")
	fmt.Fprintf(&b, "<p><strong>Client:</strong> %s</p>\n", doc.Meta.ClientName)
	fmt.Fprintf(&b, "<p><strong>Date:</strong> %s</p>\n", doc.Meta.CreatedAt)
	b.WriteString("</div>\n</div>\n<div>\n")
	b.WriteString(HTML(doc.Markdown))
	b.WriteString("\n</div>\n</body>\n</html>\n")
	return b.String()
}

// Filename sanitizes a title for a download attachment name.
func Filename(title, ext string) string {
	return unsafeRE.ReplaceAllString(title, "_") + "." + ext
}
