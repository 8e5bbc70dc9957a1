// Package compiler turns generated template code into executable renderers.
//
// A compiled Template is an immutable text/template set. Composition funcs
// (renderBody, renderSection, renderPartial and friends) are registered as
// placeholders at parse time and rebound on a clone for every execution, so a
// single Template can serve concurrent renders.
package compiler

import (
	"io"
	"strings"
	"text/template"

	"github.com/conneroisu/tmplview/internal/codegen"
	"github.com/conneroisu/tmplview/internal/errors"
)

// Names of the composition funcs visible to templates.
const (
	FuncModel         = codegen.ModelBinding
	FuncRenderBody    = "renderBody"
	FuncRenderSection = "renderSection"
	FuncRenderPartial = "renderPartial"
	FuncLayout        = "layout"
	FuncSectionFrom   = "sectionFrom"
)

// Template is a compiled view.
type Template struct {
	name      string
	generated string
	tmpl      *template.Template
	dirs      Directives
}

// Placeholders returns the composition funcs with inert implementations.
// Execute replaces them with live ones.
func Placeholders() template.FuncMap {
	return template.FuncMap{
		FuncModel:         func() any { return nil },
		FuncRenderBody:    func() (string, error) { return "", nil },
		FuncRenderSection: func(string, ...string) (string, error) { return "", nil },
		FuncRenderPartial: func(any, ...any) (string, error) { return "", nil },
		FuncLayout:        func(string) string { return "" },
		FuncSectionFrom:   func(string, string) string { return "" },
	}
}

// Compile parses generated code. helpers are extra funcs made available to
// the template; they may not shadow the composition funcs.
func Compile(name, generated string, helpers template.FuncMap) (*Template, error) {
	funcs := template.FuncMap{}
	for k, v := range helpers {
		funcs[k] = v
	}
	for k, v := range Placeholders() {
		funcs[k] = v
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(generated)
	if err != nil {
		return nil, errors.NewCreateFunctionError(name, generated, err)
	}

	t := &Template{
		name:      name,
		generated: generated,
		tmpl:      tmpl,
	}
	t.dirs = scan(tmpl)
	return t, nil
}

// Name returns the view identity the template was compiled for.
func (t *Template) Name() string { return t.name }

// Generated returns the code the template was compiled from.
func (t *Template) Generated() string { return t.generated }

// Directives returns the composition directives found in the template.
func (t *Template) Directives() Directives { return t.dirs }

// HasSection reports whether the template provides inline content for section.
func (t *Template) HasSection(section string) bool {
	return t.tmpl.Lookup(codegen.SectionPrefix+section) != nil
}

// Execute renders the template body. model is bound to the model func and to
// dot; funcs replace the placeholders for this execution only.
func (t *Template) Execute(w io.Writer, model any, funcs template.FuncMap) error {
	return t.execute(w, t.name, model, funcs)
}

// ExecuteSection renders the inline content the template provides for section.
func (t *Template) ExecuteSection(w io.Writer, section string, model any, funcs template.FuncMap) error {
	return t.execute(w, codegen.SectionPrefix+section, model, funcs)
}

func (t *Template) execute(w io.Writer, name string, model any, funcs template.FuncMap) error {
	clone, err := t.tmpl.Clone()
	if err != nil {
		return errors.NewExecuteError(t.name, err)
	}

	bound := template.FuncMap{FuncModel: func() any { return model }}
	for k, v := range funcs {
		bound[k] = v
	}
	clone.Funcs(bound)

	if err := clone.ExecuteTemplate(w, name, model); err != nil {
		if _, ok := errors.KindOf(err); ok {
			return err
		}
		return errors.NewExecuteError(t.name, err).WithSource(t.generated)
	}
	return nil
}

// Render is a convenience for executing into a string.
func (t *Template) Render(model any, funcs template.FuncMap) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, model, funcs); err != nil {
		return "", err
	}
	return b.String(), nil
}
