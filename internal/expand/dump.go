package expand

import (
	"fmt"
	"strings"
)

// Expanded renders the instrumented intermediate text. The rendering is what
// gets dumped for post-mortem when a unit fails to compile or run: inserted
// checks are spelled out, and #line markers tie every statement back to the
// original source so diagnostics report the line the author wrote.
func (p *Parsed) Expanded() []string {
	out := make([]string, 0, len(p.Nodes)*2+1+len(p.Foreign))
	out = append(out, fmt.Sprintf("# %s expanded from %s", p.Name, p.Path))
	for _, f := range p.Foreign {
		out = append(out, fmt.Sprintf("# fetch-args %s (lazy)", f))
	}
	for _, n := range p.Nodes {
		switch n := n.(type) {
		case *Text:
			out = append(out, n.Raw)
		case *Directive:
			out = append(out, fmt.Sprintf("#line %d", n.Line))
			call := fmt.Sprintf("call %s (invocation %d)", n.Child, n.Ordinal)
			if len(n.Args) > 0 {
				toks := make([]string, len(n.Args))
				for i, t := range n.Args {
					toks[i] = t.String()
				}
				call += " " + strings.Join(toks, " ")
			}
			out = append(out, call, "check-status fail-return")
		case *TaskCall:
			out = append(out, fmt.Sprintf("#line %d", n.Line))
			s := fmt.Sprintf("obeyw %s %s", n.Engine, n.Task)
			if n.ArgStr != "" {
				s += " " + n.ArgStr
			}
			out = append(out, s, "check-status fail-return detach-on-dead="+n.Engine)
		case *StatusCheck:
			out = append(out, fmt.Sprintf("#line %d", n.Line), strings.TrimSpace(n.Raw), "check-status fail-return")
		case *Assign:
			out = append(out, fmt.Sprintf("#line %d", n.Line), strings.TrimSpace(n.Raw))
		}
	}
	return out
}
