// Package compile lowers expanded primitive sources into callable units and
// caches them by source identity. A unit's steps are ordinary closures over
// typed nodes; nothing interprets program text at run time.
package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/expand"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// statusOK is the value the status binding carries after a successful
// operation.
const statusOK = "0"

// Host is the execution surface lowered steps run against: dispatching task
// operations, invoking child primitives, and tracing. The call-stack manager
// implements it; tests substitute fakes.
type Host interface {
	ports.TaskDispatcher

	// Invoke resolves, compiles and runs a child primitive under the given
	// call frame.
	Invoke(ctx context.Context, rc *domain.RecipeContext, child string, args domain.Args, frame domain.CallFrame) error

	// Trace reports an engine call about to be dispatched.
	Trace(primitive string, line int, call string)
}

// Invocation carries the fixed calling convention for one run of a unit: the
// ordered context handles first, then the keyed argument map, plus the local
// bindings the unit accumulates as it runs.
type Invocation struct {
	Host   Host
	RC     *domain.RecipeContext
	Args   domain.Args
	Locals map[string]string
	Name   string
	Path   string
	Depth  int
}

type step func(ctx context.Context, inv *Invocation) error

// Unit is a compiled primitive: the lowered steps plus the source identity
// the cache validates against.
type Unit struct {
	Name   string
	Path   string
	Mtime  time.Time
	Source *expand.Parsed

	steps []step
}

// Children lists the primitives this unit invokes directly.
func (u *Unit) Children() []string { return u.Source.Children }

// Engines lists the engines this unit's task calls name literally.
func (u *Unit) Engines() []string { return u.Source.Engines() }

// Run executes the unit's steps in order, stopping at the first failure. A
// canceled context between steps becomes a user abort.
func (u *Unit) Run(ctx context.Context, inv *Invocation) error {
	if inv.Locals == nil {
		inv.Locals = make(map[string]string)
	}
	for _, s := range u.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUserAbort, err)
		}
		if err := s(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

// WriteExpanded dumps the instrumented text so a failing unit can be
// inspected post-mortem. Returns the path written.
func (u *Unit) WriteExpanded(dir string) (string, error) {
	path := filepath.Join(dir, u.Name+".expanded")
	data := strings.Join(u.Source.Expanded(), "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("dump expanded text: %w", err)
	}
	return path, nil
}

var foreignKeyRe = regexp.MustCompile(`^(_[A-Z][A-Z0-9_]*_)\.(.+)$`)

// resolve interpolates ${name} references. Lookup order: local bindings, the
// invocation's own arguments, RECPAR.* recipe parameters, CAL.* calibration
// lookups, _NAME_.* foreign argument tables, run-context builtins.
// `${name|fallback}` supplies a value for references that resolve to
// nothing; without one an unresolved reference is an error.
func (inv *Invocation) resolve(s string) (string, error) {
	if !strings.ContainsRune(s, '$') {
		return s, nil
	}
	var firstErr error
	out := os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, "|")
		v, ok, err := inv.lookup(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		if !ok {
			if hasFallback {
				return fallback
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("unknown reference ${%s}", name)
			}
			return ""
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (inv *Invocation) lookup(name string) (string, bool, error) {
	if v, ok := inv.Locals[name]; ok {
		return v, true, nil
	}
	if v, ok := inv.Args[name]; ok {
		return v, true, nil
	}
	if key, ok := strings.CutPrefix(name, "RECPAR."); ok {
		v, ok := inv.RC.Params[key]
		return v, ok, nil
	}
	if kind, ok := strings.CutPrefix(name, "CAL."); ok {
		// Calibration is strict: a missing product fails the reduction
		// rather than interpolating a blank or a fallback.
		if inv.RC.Cal == nil {
			return "", false, fmt.Errorf("no calibration source is wired (reference ${CAL.%s})", kind)
		}
		v, err := inv.RC.Cal.Get(kind, inv.RC.Frame)
		if err != nil {
			return "", false, fmt.Errorf("calibration lookup %s: %w", kind, err)
		}
		return v, true, nil
	}
	if m := foreignKeyRe.FindStringSubmatch(name); m != nil {
		// First use fetches the table; never-invoked primitives fail here.
		stored, err := inv.RC.ArgsFor(m[1], inv.Name)
		if err != nil {
			return "", false, err
		}
		v, ok := stored[m[2]]
		return v, ok, nil
	}
	switch name {
	case "FILE":
		return inv.RC.Frame.File(), true, nil
	case "GROUP":
		if inv.RC.Group == nil {
			return "", true, nil
		}
		return inv.RC.Group.File, true, nil
	case "INSTRUMENT":
		return inv.RC.Instrument, true, nil
	case "RECIPE":
		return inv.RC.Recipe, true, nil
	case "OBJECT":
		return inv.RC.Object, true, nil
	case "RUNID":
		return inv.RC.RunID, true, nil
	}
	return "", false, nil
}

// resolveTokens materializes parsed argument tokens: pair values are
// interpolated, splats splice in the referenced primitive's stored
// arguments, later tokens win.
func (inv *Invocation) resolveTokens(toks []expand.ArgToken) (domain.Args, error) {
	args := make(domain.Args, len(toks))
	for _, t := range toks {
		if t.Splat {
			stored, err := inv.RC.ArgsFor(t.Value, inv.Name)
			if err != nil {
				return nil, err
			}
			for k, v := range stored {
				args[k] = v
			}
			continue
		}
		v, err := inv.resolve(t.Value)
		if err != nil {
			return nil, err
		}
		args[t.Key] = v
	}
	return args, nil
}

func (inv *Invocation) resolveAll(ss []string) ([]string, error) {
	out := make([]string, len(ss))
	for i, s := range ss {
		v, err := inv.resolve(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fatalize turns a resolution error into a located fatal error. Errors that
// are already fatal pass through unchanged so the original location wins.
func fatalize(name, path string, line int, msg string, err error) error {
	if err == nil || domain.IsFatal(err) {
		return err
	}
	fe := domain.Fatalf(name, path, line, "%s", msg)
	fe.Err = err
	return fe
}
