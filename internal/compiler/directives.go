package compiler

import (
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/conneroisu/tmplview/internal/codegen"
)

// Directives lists the composition references of a compiled template.
type Directives struct {
	// Layout is the parent layout, empty when the view has none.
	Layout string
	// Partials are the statically named partials, in order of first use.
	Partials []string
	// DynamicPartials is set when a partial name is only known at execution.
	DynamicPartials bool
	// Sections are the names the template provides inline content for.
	Sections []string
	// SectionFiles maps a section name to the view providing its content.
	SectionFiles map[string]string
	// UsesBody is set when the template calls renderBody.
	UsesBody bool
}

func scan(tmpl *template.Template) Directives {
	d := Directives{SectionFiles: map[string]string{}}
	seen := map[string]bool{}

	// Templates() has no stable order
	templates := tmpl.Templates()
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name() < templates[j].Name()
	})

	for _, t := range templates {
		if t.Tree == nil || t.Tree.Root == nil {
			continue
		}
		isMain := t.Name() == tmpl.Name()
		if !isMain {
			if section, ok := strings.CutPrefix(t.Name(), codegen.SectionPrefix); ok {
				d.Sections = append(d.Sections, section)
			}
		}
		walk(t.Tree.Root, func(cmd *parse.CommandNode) {
			visit(&d, seen, cmd, isMain)
		})
	}
	return d
}

func visit(d *Directives, seen map[string]bool, cmd *parse.CommandNode, isMain bool) {
	fn, args := commandArgs(cmd)
	switch fn {
	case FuncLayout:
		if isMain && len(args) > 0 && args[0] != "" && d.Layout == "" {
			d.Layout = args[0]
		}
	case FuncSectionFrom:
		if isMain && len(args) > 1 && args[0] != "" {
			d.SectionFiles[args[0]] = args[1]
		}
	case FuncRenderBody:
		d.UsesBody = true
	case FuncRenderPartial:
		if len(args) == 0 || args[0] == "" {
			d.DynamicPartials = true
			return
		}
		if !seen[args[0]] {
			seen[args[0]] = true
			d.Partials = append(d.Partials, args[0])
		}
	}
}

// commandArgs returns the func name of cmd and its leading string literal
// arguments. A non-literal argument ends the list with an empty string.
func commandArgs(cmd *parse.CommandNode) (fn string, args []string) {
	if len(cmd.Args) == 0 {
		return "", nil
	}
	ident, ok := cmd.Args[0].(*parse.IdentifierNode)
	if !ok {
		return "", nil
	}
	fn = ident.Ident
	for _, a := range cmd.Args[1:] {
		s, ok := a.(*parse.StringNode)
		if !ok {
			args = append(args, "")
			break
		}
		args = append(args, s.Text)
	}
	return fn, args
}

// walk calls fn for every command in the tree, including commands nested
// in parenthesised pipelines.
func walk(node parse.Node, fn func(*parse.CommandNode)) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			walk(c, fn)
		}
	case *parse.ActionNode:
		walkPipe(n.Pipe, fn)
	case *parse.IfNode:
		walkBranch(&n.BranchNode, fn)
	case *parse.RangeNode:
		walkBranch(&n.BranchNode, fn)
	case *parse.WithNode:
		walkBranch(&n.BranchNode, fn)
	case *parse.TemplateNode:
		walkPipe(n.Pipe, fn)
	}
}

func walkBranch(b *parse.BranchNode, fn func(*parse.CommandNode)) {
	walkPipe(b.Pipe, fn)
	walk(b.List, fn)
	walk(b.ElseList, fn)
}

func walkPipe(p *parse.PipeNode, fn func(*parse.CommandNode)) {
	if p == nil {
		return
	}
	for _, cmd := range p.Cmds {
		fn(cmd)
		for _, a := range cmd.Args {
			if sub, ok := a.(*parse.PipeNode); ok {
				walkPipe(sub, fn)
			}
		}
	}
}
