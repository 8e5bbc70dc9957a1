package codegen

import (
	"strings"

	"github.com/conneroisu/tmplview/internal/errors"
)

// normalizeCall rewrites call syntax into template command syntax:
// f(a, g(b)) becomes f a (g b). Anything that is not a whole call is
// returned unchanged.
func normalizeCall(s string) (string, error) {
	s = strings.TrimSpace(s)
	name, inner, ok, err := splitCall(s)
	if err != nil || !ok {
		return s, err
	}

	args, err := splitTopLevel(inner, ',')
	if err != nil {
		return "", err
	}

	parts := []string{name}
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		n, err := normalizeCall(a)
		if err != nil {
			return "", err
		}
		if n != a || strings.Contains(n, "|") {
			n = "(" + n + ")"
		}
		parts = append(parts, n)
	}
	return strings.Join(parts, " "), nil
}

// splitCall reports whether s is exactly ident(...) and returns its parts.
func splitCall(s string) (name, inner string, ok bool, err error) {
	name = leadingWord(s)
	if name == "" || len(name) == len(s) || s[len(name)] != '(' {
		return "", "", false, nil
	}
	if c := name[0]; c >= '0' && c <= '9' {
		return "", "", false, nil
	}

	end, err := matchParen(s, len(name))
	if err != nil {
		return "", "", false, err
	}
	if end != len(s)-1 {
		return "", "", false, nil
	}
	return name, s[len(name)+1 : end], true, nil
}

// matchParen returns the index of the parenthesis closing the one at open.
func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'', '`':
			end, err := skipQuoted(s, i)
			if err != nil {
				return -1, err
			}
			i = end
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, errors.New("unbalanced parentheses")
}

// splitTopLevel splits s on sep, ignoring separators inside quotes and
// parentheses.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	depth := 0
	start := 0

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' || c == '\'' || c == '`':
			end, err := skipQuoted(s, i)
			if err != nil {
				return nil, err
			}
			i = end
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}
	return append(parts, s[start:]), nil
}

// skipQuoted returns the index of the quote closing the literal at i.
func skipQuoted(s string, i int) (int, error) {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j, nil
		}
	}
	return -1, errors.New("unterminated string literal")
}
