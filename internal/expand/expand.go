// Package expand rewrites raw primitive text into an instrumented
// intermediate form: a tree of typed nodes in which nested primitive
// invocations, engine task calls and status checkpoints are explicit, and
// every node remembers its original source line. Documentation blocks pass
// through unscanned.
package expand

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// StatusBinding is the recognized last-operation-status binding. A line
// assigning into it is a status checkpoint.
const StatusBinding = "ORAC_STATUS"

// Mode selects the argument discipline for a source kind.
type Mode int

const (
	// ModePrimitive allows deferred argument values: interpolations,
	// foreign-table references and splats, resolved while the recipe runs.
	ModePrimitive Mode = iota
	// ModeRecipe restricts directive arguments to literal values.
	ModeRecipe
)

var (
	primNameRe = regexp.MustCompile(`^_[A-Z][A-Z0-9_]*_$`)
	assignRe   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)
	foreignRe  = regexp.MustCompile(`\$\{(_[A-Z][A-Z0-9_]*_)\.`)
	podEdgeRe  = regexp.MustCompile(`^=[A-Za-z]`)
)

func isPrimitiveName(s string) bool { return primNameRe.MatchString(s) }

// Parsed is the expansion result for one source: the node tree, the children
// it invokes, the foreign argument tables its body references, and the
// extracted documentation block.
type Parsed struct {
	Name     string
	Path     string
	Mode     Mode
	Lines    []string // raw source lines, 1-based via index+1
	Nodes    []Node
	Children []string // directly invoked primitive names, unique, in order
	Foreign  []string // argument tables referenced mid-body, unique, in order
	Pod      []string // documentation lines, markers included
}

// Parse expands one primitive or recipe source into its node tree. All
// scanner failures are fatal: a source that does not parse cannot become a
// compiled unit.
func Parse(name, path string, src []byte, mode Mode) (*Parsed, error) {
	p := &Parsed{Name: name, Path: path, Mode: mode, Lines: splitLines(src)}

	// Before rewriting, one scan pass finds every foreign argument-table
	// reference so lazy fetches are declared only for tables the body uses.
	p.scanForeign()

	ordinals := make(map[string]int)
	childSeen := make(map[string]bool)
	inPod := false
	for i, raw := range p.Lines {
		n, err := p.scanLine(i+1, raw, &inPod, ordinals, childSeen)
		if err != nil {
			return nil, err
		}
		p.Nodes = append(p.Nodes, n)
	}
	return p, nil
}

func (p *Parsed) scanForeign() {
	seen := make(map[string]bool)
	inPod := false
	for _, raw := range p.Lines {
		if inPod {
			if strings.HasPrefix(raw, "=cut") {
				inPod = false
			}
			continue
		}
		if podEdgeRe.MatchString(raw) {
			inPod = !strings.HasPrefix(raw, "=cut")
			continue
		}
		t := strings.TrimSpace(raw)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		for _, m := range foreignRe.FindAllStringSubmatch(raw, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				p.Foreign = append(p.Foreign, m[1])
			}
		}
	}
}

func (p *Parsed) scanLine(lineNo int, raw string, inPod *bool, ordinals map[string]int, childSeen map[string]bool) (Node, error) {
	if *inPod {
		p.Pod = append(p.Pod, raw)
		if strings.HasPrefix(raw, "=cut") {
			*inPod = false
		}
		return &Text{Line: lineNo, Raw: raw, Pod: true}, nil
	}
	if podEdgeRe.MatchString(raw) {
		p.Pod = append(p.Pod, raw)
		*inPod = !strings.HasPrefix(raw, "=cut")
		return &Text{Line: lineNo, Raw: raw, Pod: true}, nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return &Text{Line: lineNo, Raw: raw}, nil
	}

	tok, rest := splitFirstToken(trimmed)

	if isPrimitiveName(tok) {
		args, err := ParseArgs(rest, p.Mode == ModeRecipe)
		if err != nil {
			return nil, domain.Fatalf(p.Name, p.Path, lineNo, "bad arguments for %s: %v", tok, err)
		}
		ordinals[tok]++
		if !childSeen[tok] {
			childSeen[tok] = true
			p.Children = append(p.Children, tok)
		}
		return &Directive{Line: lineNo, Raw: raw, Child: tok, Args: args, Ordinal: ordinals[tok]}, nil
	}

	if tok == "obeyw" {
		engine, rest := splitFirstToken(rest)
		task, argStr := splitFirstToken(rest)
		if engine == "" || task == "" {
			return nil, domain.Fatalf(p.Name, p.Path, lineNo, "obeyw needs an engine and a task")
		}
		return &TaskCall{Line: lineNo, Raw: raw, Engine: engine, Task: task, ArgStr: argStr}, nil
	}

	if m := assignRe.FindStringSubmatch(trimmed); m != nil {
		return p.scanAssign(lineNo, raw, m[1], strings.TrimSpace(m[2]))
	}

	return &Text{Line: lineNo, Raw: raw}, nil
}

func (p *Parsed) scanAssign(lineNo int, raw, dest, rhs string) (Node, error) {
	keyword, _ := splitFirstToken(rhs)

	var op StatusOp
	var want int
	switch keyword {
	case "getpar":
		op, want = OpGetPar, 3
	case "setpar":
		op, want = OpSetPar, 4
	case "control":
		op, want = OpControl, 3
	case "ok", "bad":
		if dest != StatusBinding {
			// `X = ok` is a plain assignment; only the status binding
			// gives the bare words their checkpoint meaning.
			return &Assign{Line: lineNo, Raw: raw, Name: dest, Value: rhs}, nil
		}
		op = OpOK
		if keyword == "bad" {
			op = OpBad
		}
		if rhs != keyword {
			return nil, domain.Fatalf(p.Name, p.Path, lineNo, "%s takes no operands", keyword)
		}
		return &StatusCheck{Line: lineNo, Raw: raw, Dest: dest, Op: op}, nil
	default:
		if dest == StatusBinding {
			return nil, domain.Fatalf(p.Name, p.Path, lineNo, "unrecognized status expression %q", rhs)
		}
		return &Assign{Line: lineNo, Raw: raw, Name: dest, Value: rhs}, nil
	}

	fields, err := splitQuoted(rhs)
	if err != nil {
		return nil, domain.Fatalf(p.Name, p.Path, lineNo, "bad %s operands: %v", keyword, err)
	}
	operands := fields[1:]
	if len(operands) != want {
		return nil, domain.Fatalf(p.Name, p.Path, lineNo, "%s takes %d operands, got %d", keyword, want, len(operands))
	}
	if op == OpSetPar && dest != StatusBinding {
		return nil, domain.Fatalf(p.Name, p.Path, lineNo, "setpar yields no value to assign to %s", dest)
	}
	return &StatusCheck{Line: lineNo, Raw: raw, Dest: dest, Op: op, Operands: operands}, nil
}

func splitFirstToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func splitLines(src []byte) []string {
	lines := strings.Split(string(src), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Engines lists the engines the source's task calls and status checkpoints
// name, unique, in order of first use. Checkpoint operands are interpolated
// when they run, so a reference that is not a literal name is omitted.
func (p *Parsed) Engines() []string {
	var engines []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || strings.ContainsRune(name, '$') || seen[name] {
			return
		}
		seen[name] = true
		engines = append(engines, name)
	}
	for _, n := range p.Nodes {
		switch n := n.(type) {
		case *TaskCall:
			add(n.Engine)
		case *StatusCheck:
			if len(n.Operands) > 0 {
				add(n.Operands[0])
			}
		}
	}
	return engines
}

// Doc returns the documentation block as one string, outer markers removed,
// for rendering by the doc command. Empty when the source carries none.
func (p *Parsed) Doc() string {
	if len(p.Pod) == 0 {
		return ""
	}
	var b strings.Builder
	for _, l := range p.Pod {
		if podEdgeRe.MatchString(l) && (strings.HasPrefix(l, "=pod") || strings.HasPrefix(l, "=cut")) {
			continue
		}
		fmt.Fprintln(&b, l)
	}
	return strings.TrimSpace(b.String())
}
