package errors

import (
	"fmt"
	"html"
	"strings"
)

const maxSourceExcerpt = 2000

// Diagnostic returns the message shown to users. Production configurations
// hide internals behind a generic message.
func Diagnostic(err error, production bool) string {
	if err == nil {
		return ""
	}
	if production {
		if kind, ok := KindOf(err); ok {
			return fmt.Sprintf("view rendering failed (%s)", kind)
		}
		return "view rendering failed"
	}
	return err.Error()
}

// Fragment renders err as an inline HTML diagnostic. It is substituted where a
// recovered partial or section would have been written.
func Fragment(err error, production bool) string {
	if err == nil {
		return ""
	}
	if production {
		return "<!-- partial render failed -->"
	}

	var b strings.Builder
	b.WriteString(`<div class="view-error" style="border-left: 4px solid #ff6b6b; background: #2d3748; color: #e2e8f0; font-family: monospace; padding: 8px 12px; margin: 4px 0;">`)
	b.WriteString(`<strong style="color: #ff6b6b;">`)
	if kind, ok := KindOf(err); ok {
		b.WriteString(html.EscapeString(string(kind)))
	} else {
		b.WriteString("error")
	}
	b.WriteString(`</strong> `)
	b.WriteString(html.EscapeString(err.Error()))

	if src := SourceOf(err); src != "" {
		if len(src) > maxSourceExcerpt {
			src = src[:maxSourceExcerpt] + "..."
		}
		b.WriteString(`<pre style="white-space: pre-wrap; color: #a0aec0;">`)
		b.WriteString(html.EscapeString(src))
		b.WriteString(`</pre>`)
	}
	b.WriteString(`</div>`)

	return b.String()
}

// Position converts a byte offset into a 1-based line and column.
func Position(body string, offset int) (line, col int) {
	line = 1
	col = 1
	for i, char := range body {
		if i >= offset {
			break
		}
		if char == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
