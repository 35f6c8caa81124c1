package compile

import (
	"fmt"
	"strings"

	"github.com/3cpo-dev/shellbake/internal/task"
)

// DefaultLocale is exported into every generated script.
const DefaultLocale = "en_US.UTF-8"

// Options shape the generated text, not the graph.
type Options struct {
	// Locale for the LC_ALL export. Empty means DefaultLocale.
	Locale string
	// Debug turns on xtrace before the root invocation.
	Debug bool
}

// Emit renders the resolved plan as script text. The emitter guarantees
// structural correctness of names, guards, ordering and escaping; it never
// inspects user-supplied fragments.
func Emit(p *Plan, opts Options) string {
	locale := opts.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set -o errexit -o nounset -o pipefail\n\n")
	b.WriteString("export LC_ALL=" + task.Quote(locale) + "\n\n")

	groups := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		groups = append(groups, emitNode(p, n))
	}
	b.WriteString(strings.Join(groups, "\n\n"))
	b.WriteString("\n\n")

	if opts.Debug {
		b.WriteString("set -o xtrace\n")
	}
	b.WriteString(p.Root.FuncName() + "\n")
	return b.String()
}

// emitNode renders the primary function and any sub-functions of one node.
func emitNode(p *Plan, n *Node) string {
	if n.Wrapper {
		return emitWrapper(p, n)
	}

	var lines []string
	lines = append(lines, "function "+n.FuncName()+" {")
	lines = append(lines, guardLine(n))
	if len(n.DepIDs) > 0 {
		lines = append(lines, "  "+n.FuncName()+"//pre")
	}
	lines = append(lines, bodyLines(n.Body)...)
	lines = append(lines, "}")

	if len(n.DepIDs) > 0 {
		lines = append(lines, "function "+n.FuncName()+"//pre {")
		lines = append(lines, callLines(p, n.DepIDs)...)
		lines = append(lines, "}")
	}
	return strings.Join(lines, "\n")
}

// emitWrapper renders a staged wrapper: the primary function opens a
// subshell and calls the //pre, //inner and //post stages in that fixed
// order; only stages with content are emitted. Dependencies, if any, run
// before the subshell so they execute in the caller's context.
func emitWrapper(p *Plan, n *Node) string {
	fname := n.FuncName()
	inner := fname + "//inner"

	var lines []string
	lines = append(lines, "function "+fname+" {")
	lines = append(lines, guardLine(n))
	lines = append(lines, callLines(p, n.DepIDs)...)
	lines = append(lines, "  (")
	if len(n.Hooks.Pre) > 0 {
		lines = append(lines, "    "+fname+"//pre")
	}
	if n.Hooks.ExecFormat != "" {
		lines = append(lines, "    "+fmt.Sprintf(n.Hooks.ExecFormat, task.Quote(inner)))
	} else {
		lines = append(lines, "    "+inner)
	}
	if len(n.Hooks.Post) > 0 {
		lines = append(lines, "    "+fname+"//post")
	}
	lines = append(lines, "  )")
	lines = append(lines, "}")

	if len(n.Hooks.Pre) > 0 {
		lines = append(lines, "function "+fname+"//pre {")
		lines = append(lines, indent(n.Hooks.Pre)...)
		lines = append(lines, "}")
	}
	lines = append(lines, "function "+inner+" {")
	if len(n.ChildIDs) == 0 {
		lines = append(lines, "  : # Do nothing.")
	} else {
		lines = append(lines, callLines(p, n.ChildIDs)...)
	}
	lines = append(lines, "}")
	if len(n.Hooks.Post) > 0 {
		lines = append(lines, "function "+fname+"//post {")
		lines = append(lines, indent(n.Hooks.Post)...)
		lines = append(lines, "}")
	}
	return strings.Join(lines, "\n")
}

// guardLine renders the once-guard: a per-identity flag that short-circuits
// every call after the first within a run.
func guardLine(n *Node) string {
	g := "_" + n.ID
	return fmt.Sprintf("  [[ ${%s+_} ]] && return || %s=_ # only once", g, g)
}

func callLines(p *Plan, ids []string) []string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := p.Lookup(id); ok {
			lines = append(lines, "  "+n.FuncName())
		}
	}
	return lines
}

// bodyLines renders a task body. Raw fragments are dedented then indented
// two spaces, except tab-prefixed lines, which stay flush for heredocs.
// Argv vectors become one line each with every token quoted.
func bodyLines(b task.Body) []string {
	if b.IsRaw() {
		return indent(strings.Split(task.Dedent(b.RawText()), "\n"))
	}
	lines := make([]string, 0, len(b.Vectors()))
	for _, vec := range b.Vectors() {
		lines = append(lines, "  "+task.QuoteAll(vec))
	}
	return lines
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "\t") {
			out[i] = line
			continue
		}
		out[i] = "  " + line
	}
	return out
}
