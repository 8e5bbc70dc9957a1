// Package htmlfmt pretty-prints and minifies rendered HTML.
//
// Both passes work on the token stream, so malformed markup is passed
// through rather than rejected. Content of pre, textarea, script and style
// elements is never reflowed.
package htmlfmt

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const indentUnit = "  "

var whitespace = regexp.MustCompile(`\s+`)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var preserved = map[string]bool{
	"pre": true, "textarea": true, "script": true, "style": true,
}

type token struct {
	typ  html.TokenType
	raw  string
	name string
}

// tokens returns the token stream of src. Raw is copied before TagName,
// which rewrites the tokenizer buffer.
func tokens(src string) []token {
	z := html.NewTokenizer(strings.NewReader(src))
	var out []token
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		t := token{typ: tt, raw: string(z.Raw())}
		if tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken {
			name, _ := z.TagName()
			t.name = string(name)
		}
		out = append(out, t)
	}
}

// Beautify indents every element on its own line.
func Beautify(src string) string {
	var b strings.Builder
	depth := 0
	keep := 0 // depth inside preserved elements

	line := func(s string) {
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteString(s)
		b.WriteByte('\n')
	}

	for _, t := range tokens(src) {
		if keep > 0 {
			b.WriteString(t.raw)
			switch {
			case t.typ == html.StartTagToken && preserved[t.name]:
				keep++
			case t.typ == html.EndTagToken && preserved[t.name]:
				keep--
				if keep == 0 {
					b.WriteByte('\n')
				}
			}
			continue
		}

		switch t.typ {
		case html.StartTagToken:
			if preserved[t.name] {
				b.WriteString(strings.Repeat(indentUnit, depth))
				b.WriteString(t.raw)
				keep = 1
				continue
			}
			line(t.raw)
			if !voidElements[t.name] {
				depth++
			}
		case html.EndTagToken:
			if depth > 0 && !voidElements[t.name] {
				depth--
			}
			line(t.raw)
		case html.TextToken:
			if text := strings.TrimSpace(t.raw); text != "" {
				line(whitespace.ReplaceAllString(text, " "))
			}
		default:
			line(strings.TrimSpace(t.raw))
		}
	}
	return b.String()
}

// Minify collapses whitespace and drops comments.
func Minify(src string) string {
	var b strings.Builder
	keep := 0
	outer := ""

	for _, t := range tokens(src) {
		if keep > 0 {
			switch {
			case t.typ == html.StartTagToken && preserved[t.name]:
				keep++
			case t.typ == html.EndTagToken && preserved[t.name]:
				keep--
			}
			if t.typ == html.TextToken && (outer == "script" || outer == "style") {
				b.WriteString(strings.TrimSpace(t.raw))
				continue
			}
			b.WriteString(t.raw)
			continue
		}

		switch t.typ {
		case html.StartTagToken:
			if preserved[t.name] {
				keep = 1
				outer = t.name
			}
			b.WriteString(t.raw)
		case html.TextToken:
			if strings.TrimSpace(t.raw) == "" && strings.ContainsAny(t.raw, "\r\n") {
				continue
			}
			b.WriteString(whitespace.ReplaceAllString(t.raw, " "))
		case html.CommentToken:
			// conditional comments carry markup
			if strings.HasPrefix(t.raw, "<!--[if") {
				b.WriteString(t.raw)
			}
		default:
			b.WriteString(t.raw)
		}
	}
	return b.String()
}
