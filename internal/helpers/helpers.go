// Package helpers provides the funcs available to every view besides the
// composition funcs: escaping, collections and locale aware formatting.
package helpers

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Options selects the locale used by the formatting helpers.
type Options struct {
	// Locale is a BCP 47 tag such as "en-US" or "pt-BR".
	Locale string
	// Currency is an ISO 4217 code used by formatMoney.
	Currency string
}

// Set holds locale bound formatting state.
type Set struct {
	tag      language.Tag
	printer  *message.Printer
	currency currency.Unit
	caser    cases.Caser
}

// New builds a helper set. Unknown locales and currencies fall back to
// English and USD.
func New(opts Options) *Set {
	tag, err := language.Parse(opts.Locale)
	if err != nil || opts.Locale == "" {
		tag = language.English
	}
	unit, err := currency.ParseISO(opts.Currency)
	if err != nil {
		unit = currency.USD
	}
	return &Set{
		tag:      tag,
		printer:  message.NewPrinter(tag),
		currency: unit,
		caser:    cases.Title(tag),
	}
}

// Funcs returns the helpers as a template func map.
func (s *Set) Funcs() template.FuncMap {
	return template.FuncMap{
		"escape":        Escape,
		"raw":           Raw,
		"join":          Join,
		"repeat":        Repeat,
		"seq":           Seq,
		"default":       Default,
		"upper":         strings.ToUpper,
		"lower":         strings.ToLower,
		"title":         s.Title,
		"formatNumber":  s.FormatNumber,
		"formatMoney":   s.FormatMoney,
		"formatPercent": s.FormatPercent,
		"formatDate":    FormatDate,
		"insertScript":  InsertScript,
		"insertStyle":   InsertStyle,
		"json":          JSON,
	}
}

// Escape HTML-escapes the string form of v.
func Escape(v any) string {
	return html.EscapeString(toString(v))
}

// Raw returns the string form of v unchanged.
func Raw(v any) string {
	return toString(v)
}

// Join joins the elements of a slice with sep.
func Join(items any, sep string) string {
	rv := reflect.ValueOf(items)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return toString(items)
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = toString(rv.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}

// Repeat returns s repeated count times.
func Repeat(count int, s string) string {
	if count <= 0 {
		return ""
	}
	return strings.Repeat(s, count)
}

// Seq returns 0..n-1 for ranging a fixed number of times.
func Seq(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Default returns v unless it is empty, in which case def.
func Default(def, v any) any {
	if v == nil {
		return def
	}
	rv := reflect.ValueOf(v)
	if rv.IsZero() {
		return def
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		if rv.Len() == 0 {
			return def
		}
	}
	return v
}

// Title upper-cases the first letter of each word.
func (s *Set) Title(v any) string {
	return s.caser.String(toString(v))
}

// FormatNumber formats v with the locale's grouping and decimal marks.
func (s *Set) FormatNumber(v any) (string, error) {
	f, err := toFloat(v)
	if err != nil {
		return "", err
	}
	return s.printer.Sprint(number.Decimal(f)), nil
}

// FormatMoney formats v in the configured currency. Fractions beyond two
// digits are truncated, not rounded.
func (s *Set) FormatMoney(v any) (string, error) {
	f, err := toFloat(v)
	if err != nil {
		return "", err
	}
	f = roundDown(f, 2)
	symbol := s.printer.Sprint(currency.Symbol(s.currency))
	amount := s.printer.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	return symbol + " " + amount, nil
}

// FormatPercent formats a ratio such as 0.125 as a percentage with two
// fraction digits, truncating like FormatMoney.
func (s *Set) FormatPercent(v any) (string, error) {
	f, err := toFloat(v)
	if err != nil {
		return "", err
	}
	f = roundDown(f, 4)
	return s.printer.Sprint(number.Percent(f, number.MinFractionDigits(2), number.MaxFractionDigits(2))), nil
}

// FormatDate formats a time.Time, an RFC 3339 string or a unix timestamp
// using a Go reference layout. An empty layout means "2006-01-02".
func FormatDate(v any, layout string) (string, error) {
	if layout == "" {
		layout = time.DateOnly
	}

	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return "", nil
		}
		t = *x
	case string:
		parsed, err := time.Parse(time.RFC3339, x)
		if err != nil {
			parsed, err = time.Parse(time.DateOnly, x)
			if err != nil {
				return "", fmt.Errorf("formatDate: unrecognised date %q", x)
			}
		}
		t = parsed
	case int:
		t = time.Unix(int64(x), 0).UTC()
	case int64:
		t = time.Unix(x, 0).UTC()
	case float64:
		t = time.Unix(int64(x), 0).UTC()
	default:
		return "", fmt.Errorf("formatDate: unsupported type %T", v)
	}
	return t.Format(layout), nil
}

// InsertScript returns a script tag loading src.
func InsertScript(src string) string {
	return `<script type="text/javascript" src="` + html.EscapeString(src) + `"></script>`
}

// InsertStyle returns a stylesheet link for href.
func InsertStyle(href string) string {
	return `<link rel="stylesheet" href="` + html.EscapeString(href) + `" />`
}

// JSON encodes v.
func JSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func roundDown(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Floor(v*p) / p
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("cannot format %T as a number", v)
	}
}
