// Package validator statically checks a recipe call graph for the problems
// a reduction would otherwise only hit midway: primitives that cannot be
// resolved, task calls against engines no definition covers, and call chains
// the executor would refuse.
package validator

import (
	"fmt"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/internal/exec"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Issue is one finding, attached to the call-graph node it was found in.
type Issue struct {
	Node string
	Msg  string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s", i.Node, i.Msg) }

// Check walks the call graph rooted at nodes[0] and reports every problem it
// can prove without running the recipe. An empty result means the recipe
// resolves completely, every engine it names is defined, and no call chain
// can exceed the executor's recursion ceiling.
func Check(nodes []domain.CallNode, defs map[string]domain.EngineDef) []Issue {
	var issues []Issue

	byName := make(map[string]domain.CallNode, len(nodes))
	callers := make(map[string][]string)
	for _, n := range nodes {
		byName[n.Name] = n
		for _, c := range n.Children {
			callers[c] = append(callers[c], n.Name)
		}
	}

	for _, n := range nodes {
		if n.Missing {
			issues = append(issues, Issue{
				Node: n.Name,
				Msg:  fmt.Sprintf("cannot be resolved (invoked by %s)", strings.Join(callers[n.Name], ", ")),
			})
			continue
		}
		for _, engine := range n.Engines {
			if _, ok := defs[engine]; !ok {
				issues = append(issues, Issue{
					Node: n.Name,
					Msg:  fmt.Sprintf("calls engine %s, which has no definition", engine),
				})
			}
		}
	}

	if len(nodes) > 0 {
		issues = append(issues, checkDepth(nodes[0].Name, byName)...)
	}
	return issues
}

// checkDepth walks every call chain from the root counting nesting the way
// the executor does. A cycle is reported as such; it would otherwise surface
// as a recursion-ceiling abort long into a reduction.
func checkDepth(root string, byName map[string]domain.CallNode) []Issue {
	var issues []Issue
	reported := make(map[string]bool)
	report := func(node, msg string) {
		if !reported[node+"\x00"+msg] {
			reported[node+"\x00"+msg] = true
			issues = append(issues, Issue{Node: node, Msg: msg})
		}
	}

	var walk func(name string, depth int, trail []string)
	walk = func(name string, depth int, trail []string) {
		for _, t := range trail {
			if t == name {
				report(name, fmt.Sprintf("invokes itself through %s", strings.Join(append(trail, name), " > ")))
				return
			}
		}
		if depth > exec.MaxDepth {
			report(name, fmt.Sprintf("call chain exceeds the recursion ceiling of %d: %s",
				exec.MaxDepth, strings.Join(append(trail, name), " > ")))
			return
		}
		n, ok := byName[name]
		if !ok || n.Missing {
			return
		}
		for _, c := range n.Children {
			walk(c, depth+1, append(trail, name))
		}
	}
	walk(root, 0, nil)
	return issues
}
