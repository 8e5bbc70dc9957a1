// Package codegen splits embedded-code templates into literal and code
// segments and generates Go text/template source from them.
//
// A template marks code with <% and %>. Literal text is copied through (with
// the generated language's own delimiters escaped), statements become
// template actions verbatim after light translation, and expressions become
// output actions. The generated source is handed to the compiler package.
package codegen

import (
	"strconv"
	"strings"

	"github.com/conneroisu/tmplview/internal/errors"
)

const (
	OpenMarker  = "<%"
	CloseMarker = "%>"

	// ModelBinding is the name under which generated code sees the model.
	ModelBinding = "model"

	// SectionPrefix namespaces section blocks inside a template set.
	SectionPrefix = "section:"

	leftDelim  = "{{"
	rightDelim = "}}"
)

// SegmentKind tells literal text from embedded code.
type SegmentKind int

const (
	Literal SegmentKind = iota
	Code
)

// String returns the string representation of the SegmentKind
func (k SegmentKind) String() string {
	if k == Code {
		return "code"
	}
	return "literal"
}

// Segment is one piece of a split template, in document order.
type Segment struct {
	Kind   SegmentKind
	Text   string
	Offset int
}

// CodeKind classifies a code segment.
type CodeKind int

const (
	Expression CodeKind = iota
	Statement
	Comment
)

var statementKeywords = map[string]bool{
	"if":          true,
	"else":        true,
	"for":         true,
	"range":       true,
	"with":        true,
	"end":         true,
	"break":       true,
	"continue":    true,
	"define":      true,
	"block":       true,
	"template":    true,
	"var":         true,
	"section":     true,
	"layout":      true,
	"sectionFrom": true,
}

// Split scans src left to right and returns its literal and code segments.
// An open marker without a matching close marker is an error.
func Split(src string) ([]Segment, error) {
	var segs []Segment
	cursor := 0

	for {
		open := strings.Index(src[cursor:], OpenMarker)
		if open < 0 {
			break
		}
		open += cursor

		body := open + len(OpenMarker)
		closeAt := strings.Index(src[body:], CloseMarker)
		if closeAt < 0 {
			line, col := errors.Position(src, open)
			return nil, errors.NewCodeGenerationError("unterminated "+OpenMarker+" marker", src).
				WithLocation(line, col)
		}
		closeAt += body

		if open > cursor {
			segs = append(segs, Segment{Kind: Literal, Text: src[cursor:open], Offset: cursor})
		}
		segs = append(segs, Segment{Kind: Code, Text: src[body:closeAt], Offset: open})
		cursor = closeAt + len(CloseMarker)
	}

	if cursor < len(src) {
		segs = append(segs, Segment{Kind: Literal, Text: src[cursor:], Offset: cursor})
	}

	return segs, nil
}

// Classify reports whether code is a statement, an expression or a comment.
func Classify(code string) CodeKind {
	_, _, body := trimMarks(code)
	t := strings.TrimSpace(body)

	switch {
	case strings.HasPrefix(t, "#"):
		return Comment
	case strings.HasPrefix(t, "="):
		return Expression
	case t == "" || t == ";" || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "}"):
		return Statement
	}

	if statementKeywords[leadingWord(t)] {
		return Statement
	}
	return Expression
}

// Generate turns src into text/template source.
func Generate(src string) (string, error) {
	segs, err := Split(src)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	var pending strings.Builder

	for _, seg := range segs {
		if seg.Kind == Literal {
			pending.WriteString(seg.Text)
			continue
		}

		action, err := translate(seg.Text)
		if err != nil {
			line, col := errors.Position(src, seg.Offset)
			return "", errors.NewCodeGenerationError(err.Error(), OpenMarker+seg.Text+CloseMarker).
				WithLocation(line, col)
		}
		if action == "" {
			continue
		}

		out.WriteString(escapeLiteral(pending.String(), true))
		pending.Reset()
		out.WriteString(action)
	}
	out.WriteString(escapeLiteral(pending.String(), false))

	return out.String(), nil
}

// escapeLiteral keeps literal text from being read as template actions.
func escapeLiteral(text string, beforeAction bool) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, leftDelim, `{{"{{"}}`)
	if beforeAction && strings.HasSuffix(text, "{") {
		text = text[:len(text)-1] + `{{"{"}}`
	}
	return text
}

func translate(code string) (string, error) {
	trimLeft, trimRight, body := trimMarks(code)
	t := strings.TrimSpace(body)
	if t == "" {
		return "", nil
	}

	left, right := leftDelim+" ", " "+rightDelim
	if trimLeft {
		left = leftDelim + "- "
	}
	if trimRight {
		right = " -" + rightDelim
	}

	switch Classify(t) {
	case Comment:
		text := strings.ReplaceAll(strings.TrimSpace(t[1:]), "*/", "* /")
		cl, cr := leftDelim, rightDelim
		if trimLeft {
			cl = leftDelim + "- "
		}
		if trimRight {
			cr = " -" + rightDelim
		}
		return cl + "/* " + text + " */" + cr, nil

	case Statement:
		stmt, err := translateStatement(t)
		if err != nil || stmt == "" {
			return "", err
		}
		return left + stmt + right, nil

	default:
		expr := strings.TrimSpace(strings.TrimPrefix(t, "="))
		if expr == "" {
			return "", errors.New("empty expression")
		}
		norm, err := normalizeCall(expr)
		if err != nil {
			return "", err
		}
		return left + norm + right, nil
	}
}

func translateStatement(t string) (string, error) {
	// brace style: "}", "} else {", "if x {"
	if strings.HasPrefix(t, "}") {
		rest := strings.TrimSpace(t[1:])
		if rest == "" {
			return "end", nil
		}
		t = rest
	}
	t = strings.TrimSpace(strings.TrimSuffix(t, "{"))
	t = strings.TrimSpace(strings.TrimSuffix(t, ";"))
	if t == "" {
		return "", nil
	}

	word := leadingWord(t)
	rest := strings.TrimSpace(t[len(word):])

	switch word {
	case "for":
		if rest == "" {
			return "", errors.New("for requires a range expression")
		}
		return "range " + stripParens(rest), nil

	case "var":
		name, value, ok := splitAssignment(rest)
		if !ok {
			return "", errors.New("var requires the form: var name = expression")
		}
		norm, err := normalizeCall(value)
		if err != nil {
			return "", err
		}
		return "$" + strings.TrimPrefix(name, "$") + " := " + norm, nil

	case "section":
		args, err := literalArgs(t, 1, 1)
		if err != nil {
			return "", err
		}
		return "define " + strconv.Quote(SectionPrefix+args[0]), nil

	case "layout":
		args, err := literalArgs(t, 1, 1)
		if err != nil {
			return "", err
		}
		return "layout " + strconv.Quote(args[0]), nil

	case "sectionFrom":
		args, err := literalArgs(t, 2, 2)
		if err != nil {
			return "", err
		}
		return "sectionFrom " + strconv.Quote(args[0]) + " " + strconv.Quote(args[1]), nil

	case "else":
		if rest == "" {
			return "else", nil
		}
		sub, err := translateStatement(rest)
		if err != nil {
			return "", err
		}
		return "else " + sub, nil

	case "if", "with", "range":
		if rest == "" {
			return "", errors.New(word + " requires a condition")
		}
		return word + " " + rest, nil
	}

	return t, nil
}

// literalArgs normalises a directive call and returns its string literal arguments.
func literalArgs(stmt string, min, max int) ([]string, error) {
	norm, err := normalizeCall(stmt)
	if err != nil {
		return nil, err
	}
	fields, err := splitTopLevel(norm, ' ')
	if err != nil {
		return nil, err
	}

	name := fields[0]
	var args []string
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		s, err := strconv.Unquote(f)
		if err != nil {
			return nil, errors.New(name + " arguments must be string literals")
		}
		args = append(args, s)
	}
	if len(args) < min || len(args) > max {
		return nil, errors.New(name + ": wrong number of arguments")
	}
	return args, nil
}

// trimMarks strips the optional whitespace-trim markers of a code span.
func trimMarks(code string) (left, right bool, body string) {
	body = code
	if len(body) > 1 && body[0] == '-' && (isSpace(body[1]) || body[1] == '=' || body[1] == '#') {
		left = true
		body = body[1:]
	}
	if n := len(body); n > 1 && body[n-1] == '-' && isSpace(body[n-2]) {
		right = true
		body = body[:n-1]
	}
	return left, right, body
}

func leadingWord(s string) string {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i]
}

func splitAssignment(s string) (name, value string, ok bool) {
	if i := strings.Index(s, ":="); i > 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+2:]), true
	}
	if i := strings.Index(s, "="); i > 0 {
		name = strings.TrimSpace(s[:i])
		value = strings.TrimSpace(s[i+1:])
		return name, value, name != "" && value != ""
	}
	return "", "", false
}

func stripParens(s string) string {
	if strings.HasPrefix(s, "(") {
		if end, err := matchParen(s, 0); err == nil && end == len(s)-1 {
			return strings.TrimSpace(s[1:end])
		}
	}
	return s
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
