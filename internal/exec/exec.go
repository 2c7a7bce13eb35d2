// Package exec is the execution and call-stack manager: it resolves
// primitive names, loads compiled units through the cache, and invokes them
// while tracking recursion depth and the call trail. Execution is
// single-threaded; one Runtime runs one recipe at a time.
package exec

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/internal/compile"
	"github.com/Starlink/ORAC-DR-sub007/internal/expand"
	"github.com/Starlink/ORAC-DR-sub007/internal/locate"
	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// MaxDepth is the recursion ceiling. A frame at this depth still runs; one
// past it aborts the recipe, on the theory that recipes never legitimately
// nest that deep and a deeper stack means a primitive cycle.
const MaxDepth = 10

// Options adjusts runtime behavior beyond the required collaborators.
type Options struct {
	// Trace emits a diagnostic line before every engine dispatch.
	Trace bool
	// DumpDir, when set, receives the expanded text of units that fail
	// fatally, for post-mortem inspection.
	DumpDir string
}

// Runtime invokes compiled units. It implements compile.Host.
type Runtime struct {
	ports.TaskDispatcher

	loc   *locate.Locator
	cache *compile.Cache
	log   *slog.Logger
	met   *metrics.Set
	opts  Options

	trail  []domain.CallFrame
	dumped bool
}

// New builds a runtime over the given locator, cache and dispatcher.
func New(loc *locate.Locator, cache *compile.Cache, disp ports.TaskDispatcher, log *slog.Logger, met *metrics.Set, opts Options) *Runtime {
	if log == nil {
		log = logging.NewNop()
	}
	return &Runtime{
		TaskDispatcher: disp,
		loc:            loc,
		cache:          cache,
		log:            log,
		met:            met,
		opts:           opts,
	}
}

// RunUnit executes a top-level unit (normally a compiled recipe) under a
// fresh call trail. Directives inside it run at depth 1.
func (r *Runtime) RunUnit(ctx context.Context, rc *domain.RecipeContext, u *compile.Unit, args domain.Args) error {
	r.trail = r.trail[:0]
	r.dumped = false
	inv := &compile.Invocation{
		Host:   r,
		RC:     rc,
		Args:   args,
		Locals: make(map[string]string),
		Name:   u.Name,
		Path:   u.Path,
		Depth:  0,
	}
	if err := u.Run(ctx, inv); err != nil {
		r.dumpOnFatal(u, err)
		return err
	}
	return nil
}

// Invoke resolves, loads and runs one child primitive. It is the only entry
// point for nested calls, so depth accounting, the most-recent-argument
// table, recipe-parameter overrides and display events all live here.
func (r *Runtime) Invoke(ctx context.Context, rc *domain.RecipeContext, child string, args domain.Args, frame domain.CallFrame) error {
	if frame.Depth > MaxDepth {
		return domain.Fatalf(frame.Caller, "", frame.Line,
			"invoking %s would exceed the recursion ceiling of %d\n%s", child, MaxDepth, r.Trail())
	}

	path, err := r.loc.Find(child, rc.ObsMode())
	if err != nil {
		return err
	}
	u, err := r.cache.Load(child, path, expand.ModePrimitive)
	if err != nil {
		return err
	}

	args = overrideArgs(rc, child, args)
	rc.StoreArgs(child, args)
	r.met.Invocation(child)

	r.trail = append(r.trail, frame)
	defer func() { r.trail = r.trail[:len(r.trail)-1] }()

	r.log.Debug("invoke",
		"primitive", child,
		"caller", frame.Caller,
		"line", frame.Line,
		"call", frame.Ordinal,
		"depth", frame.Depth,
	)

	inv := &compile.Invocation{
		Host:   r,
		RC:     rc,
		Args:   args,
		Locals: make(map[string]string),
		Name:   child,
		Path:   u.Path,
		Depth:  frame.Depth,
	}
	if err := u.Run(ctx, inv); err != nil {
		r.dumpOnFatal(u, err)
		return err
	}

	r.emitDisplay(ctx, rc, child, frame)
	return nil
}

// Trace implements the pre-dispatch diagnostic hook.
func (r *Runtime) Trace(primitive string, line int, call string) {
	if r.opts.Trace {
		r.log.Info("dispatch", "primitive", primitive, "line", line, "call", call)
	}
}

// Trail renders the live call trail, outermost call first.
func (r *Runtime) Trail() string {
	if len(r.trail) == 0 {
		return "  (no primitive frames)"
	}
	var b strings.Builder
	for i, f := range r.trail {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("  at ")
		b.WriteString(f.String())
	}
	return b.String()
}

// overrideArgs applies recipe-parameter overrides: a parameter keyed
// "_CHILD_.key" wins over the key the directive passed.
func overrideArgs(rc *domain.RecipeContext, child string, args domain.Args) domain.Args {
	var merged domain.Args
	prefix := child + "."
	for k, v := range rc.Params {
		key, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		if merged == nil {
			merged = args.Clone()
			if merged == nil {
				merged = make(domain.Args)
			}
		}
		merged[key] = v
	}
	if merged != nil {
		return merged
	}
	return args
}

// emitDisplay reports a display-worthy step: the completion of one top-level
// primitive. Display problems never fail a reduction.
func (r *Runtime) emitDisplay(ctx context.Context, rc *domain.RecipeContext, child string, frame domain.CallFrame) {
	if rc.Display == nil || frame.Depth != 1 {
		return
	}
	var files []string
	if rc.Frame != nil {
		files = append(files, rc.Frame.Files...)
	}
	ev := domain.DisplayEvent{
		Class:  "frame",
		Files:  files,
		UseDef: true,
		Extras: map[string]string{"step": child, "runid": rc.RunID},
	}
	if err := rc.Display.Display(ctx, ev); err != nil {
		r.log.Warn("display sink failed", "step", child, "err", err)
	}
}

// dumpOnFatal writes the expanded text of the innermost failing unit. Later
// frames in the same unwind do not dump again.
func (r *Runtime) dumpOnFatal(u *compile.Unit, err error) {
	if r.opts.DumpDir == "" || r.dumped || !domain.IsFatal(err) {
		return
	}
	r.dumped = true
	path, derr := u.WriteExpanded(r.opts.DumpDir)
	if derr != nil {
		r.log.Warn("could not dump expanded text", "primitive", u.Name, "err", derr)
		return
	}
	r.log.Info("dumped expanded text", "primitive", u.Name, "path", path)
}
