package oracdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/cal"
	"github.com/Starlink/ORAC-DR-sub007/internal/compile"
	"github.com/Starlink/ORAC-DR-sub007/internal/config"
	"github.com/Starlink/ORAC-DR-sub007/internal/display"
	"github.com/Starlink/ORAC-DR-sub007/internal/engines"
	"github.com/Starlink/ORAC-DR-sub007/internal/exec"
	"github.com/Starlink/ORAC-DR-sub007/internal/expand"
	"github.com/Starlink/ORAC-DR-sub007/internal/httpapi"
	"github.com/Starlink/ORAC-DR-sub007/internal/locate"
	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
	"github.com/Starlink/ORAC-DR-sub007/internal/monitor"
	"github.com/Starlink/ORAC-DR-sub007/internal/msg"
	"github.com/Starlink/ORAC-DR-sub007/internal/msg/adam"
	"github.com/Starlink/ORAC-DR-sub007/internal/msg/mcp"
	"github.com/Starlink/ORAC-DR-sub007/internal/params"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// Pipeline is the high-level entry point for the library. It owns everything
// one reduction process needs exactly once: the source locators, the
// compilation cache, the protocol sessions and the engine registry. Nothing
// in here is a process-wide singleton; two Pipelines in one process stay
// fully independent.
type Pipeline struct {
	// Instrument is the active instrument name, fixed at construction.
	Instrument string

	search  config.Search
	recipes *locate.Locator
	prims   *locate.Locator
	cache   *compile.Cache
	protos  *msg.Protocols
	reg     *engines.Registry
	runtime *exec.Runtime
	display domain.Display
	cal     domain.Calibration
	log     *slog.Logger
	met     *metrics.Set

	// option state consumed by New
	searchSet   bool
	recipeDirs  []string
	primDirs    []string
	defs        map[string]domain.EngineDef
	engineFile  string
	paramFile   string
	sessions    []ports.ProtoSession
	sink        ports.EventSink
	eventLog    string
	taskTimeout time.Duration
	trace       bool
	dumpDir     string

	owned []io.Closer
}

// Option defines a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom structured logger for the pipeline.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithMetrics shares an existing instrument set, so an embedding program can
// expose one registry for several subsystems.
func WithMetrics(met *metrics.Set) Option {
	return func(p *Pipeline) {
		p.met = met
	}
}

// WithSearch overrides the environment-derived search configuration.
func WithSearch(s config.Search) Option {
	return func(p *Pipeline) {
		p.search = s
		p.searchSet = true
	}
}

// WithRecipeDirs prepends explicit recipe directories. They outrank both the
// environment override path and the instrument-derived directories.
func WithRecipeDirs(dirs ...string) Option {
	return func(p *Pipeline) {
		p.recipeDirs = append(p.recipeDirs, dirs...)
	}
}

// WithPrimitiveDirs prepends explicit primitive directories.
func WithPrimitiveDirs(dirs ...string) Option {
	return func(p *Pipeline) {
		p.primDirs = append(p.primDirs, dirs...)
	}
}

// WithEngineFile names the yaml engine-definition file to load.
func WithEngineFile(path string) Option {
	return func(p *Pipeline) {
		p.engineFile = path
	}
}

// WithEngineDefs injects engine definitions directly, bypassing the yaml
// file. Definitions from this option win over WithEngineFile.
func WithEngineDefs(defs map[string]domain.EngineDef) Option {
	return func(p *Pipeline) {
		p.defs = defs
	}
}

// WithProtocols injects custom protocol sessions, bypassing the default
// adam and mcp stdio sessions.
func WithProtocols(sessions ...ports.ProtoSession) Option {
	return func(p *Pipeline) {
		p.sessions = append(p.sessions, sessions...)
	}
}

// WithTaskTimeout bounds every engine call made over the default protocol
// sessions. Zero keeps each protocol's own default.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.taskTimeout = d
	}
}

// WithCalibration sets the calibration lookup used by ${CAL.*} references.
func WithCalibration(c domain.Calibration) Option {
	return func(p *Pipeline) {
		p.cal = c
	}
}

// WithDisplay injects a display sink directly.
func WithDisplay(d domain.Display) Option {
	return func(p *Pipeline) {
		p.display = d
	}
}

// WithEventLog appends display events to the progress-monitor log at path.
// The pipeline owns the file and closes it on Close. Ignored when a sink or
// display is injected directly.
func WithEventLog(path string) Option {
	return func(p *Pipeline) {
		p.eventLog = path
	}
}

// WithEventSink routes display events to the given sink (a Redis mirror, a
// test recorder). The sink stays the caller's to close.
func WithEventSink(sink ports.EventSink) Option {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// WithParameterFile names the ini recipe-parameter file consulted on every
// run for the active recipe and object.
func WithParameterFile(path string) Option {
	return func(p *Pipeline) {
		p.paramFile = path
	}
}

// WithTrace emits a diagnostic line before every engine dispatch.
func WithTrace(enabled bool) Option {
	return func(p *Pipeline) {
		p.trace = enabled
	}
}

// WithDumpDir overrides where the expanded text of fatally failing
// primitives is dumped. The default is the data-out directory.
func WithDumpDir(dir string) Option {
	return func(p *Pipeline) {
		p.dumpDir = dir
	}
}

// New initializes a Pipeline for the given instrument. Directory roots come
// from the conventional ORAC_* environment variables unless WithSearch or
// the explicit directory options say otherwise; an empty instrument falls
// back to ORAC_INSTRUMENT.
func New(instrument string, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{Instrument: instrument}
	for _, opt := range opts {
		opt(p)
	}

	if !p.searchSet {
		p.search = config.SearchFromEnv()
	}
	if p.Instrument == "" {
		p.Instrument = p.search.Instrument
	}
	p.search.Instrument = p.Instrument

	if p.log == nil {
		p.log = logging.NewNop()
	}
	if p.met == nil {
		p.met = metrics.New()
	}
	if p.cal == nil {
		p.cal = cal.Null{}
	}

	if p.defs == nil && p.engineFile != "" {
		defs, err := config.LoadEngines(p.engineFile)
		if err != nil {
			return nil, err
		}
		p.defs = defs
	}
	if p.defs == nil {
		p.defs = make(map[string]domain.EngineDef)
	}

	if p.display == nil && p.sink == nil && p.eventLog != "" {
		sink, err := monitor.NewFileSink(p.eventLog)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		p.sink = sink
		p.owned = append(p.owned, sink)
	}
	if p.display == nil {
		kind := display.KindNone
		if p.sink != nil {
			kind = display.KindMonitor
		}
		d, err := display.New(kind, p.sink, p.log)
		if err != nil {
			return nil, err
		}
		p.display = d
	}

	p.recipes = locate.New(locate.Config{
		Explicit:   p.recipeDirs,
		Override:   p.search.RecipeOverride(),
		Derived:    p.search.RecipeDerived(),
		Instrument: p.Instrument,
	}, p.log)
	p.prims = locate.New(locate.Config{
		Explicit:   p.primDirs,
		Override:   p.search.PrimitiveOverride(),
		Derived:    p.search.PrimitiveDerived(),
		Instrument: p.Instrument,
	}, p.log)

	p.cache = compile.NewCache(p.log, p.met)

	sessions := p.sessions
	if sessions == nil {
		sessions = []ports.ProtoSession{
			adam.NewSession(p.log, p.taskTimeout),
			mcp.NewSession(p.log, p.taskTimeout),
		}
	}
	p.protos = msg.NewProtocols(p.log, sessions...)
	p.reg = engines.NewRegistry(p.defs, p.protos, p.log, p.met)

	if p.dumpDir == "" {
		p.dumpDir = p.search.DataOut
	}
	p.runtime = exec.New(p.prims, p.cache, msg.NewDispatcher(p.reg, p.log, p.met), p.log, p.met, exec.Options{
		Trace:   p.trace,
		DumpDir: p.dumpDir,
	})

	return p, nil
}

// RunRecipe reduces one observation: it resolves and compiles the named
// recipe for the frame's observing mode, then executes it to completion.
// The returned error classifies the outcome; use domain.StatusOf or
// errors.Is against the domain sentinels to tell failure modes apart.
func (p *Pipeline) RunRecipe(ctx context.Context, recipe string, frame *domain.Frame) error {
	if recipe == "" {
		return fmt.Errorf("recipe name is required")
	}

	rc := domain.NewRecipeContext(p.Instrument, frame)
	rc.Recipe = recipe
	rc.Cal = p.cal
	rc.Display = p.display
	if frame != nil {
		rc.Object = frame.Hdr["OBJECT"]
	}

	if p.paramFile != "" {
		vals, err := params.Load(p.paramFile, recipe, rc.Object)
		if err != nil {
			return fmt.Errorf("recipe parameters: %w", err)
		}
		rc.Params = vals
	}

	path, err := p.recipes.Find(recipe, rc.ObsMode())
	if err != nil {
		return err
	}
	u, err := p.cache.Load(recipe, path, expand.ModeRecipe)
	if err != nil {
		return err
	}

	p.log.Info("recipe start",
		"recipe", recipe,
		"instrument", p.Instrument,
		"runid", rc.RunID,
		"file", frame.File(),
	)
	if err := p.runtime.RunUnit(ctx, rc, u, nil); err != nil {
		p.log.Error("recipe failed",
			"recipe", recipe,
			"runid", rc.RunID,
			"status", domain.StatusOf(err).String(),
			"err", err,
		)
		return err
	}
	p.log.Info("recipe done", "recipe", recipe, "runid", rc.RunID)
	return nil
}

// Doc returns the documentation block of the named primitive, resolved the
// same way an invocation would resolve it. Empty when the source carries no
// documentation.
func (p *Pipeline) Doc(name string, mode domain.ObsMode) (string, error) {
	path, err := p.prims.Find(name, mode)
	if err != nil {
		return "", err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	parsed, err := expand.Parse(name, path, src, expand.ModePrimitive)
	if err != nil {
		return "", err
	}
	return parsed.Doc(), nil
}

// Inspect resolves and compiles the named recipe and every primitive
// reachable from it, without running anything, and returns the call graph in
// breadth-first order starting at the recipe. A primitive that cannot be
// resolved becomes a node with Missing set rather than failing the walk, so
// incomplete trees can still be rendered or validated; a source that fails
// to compile aborts with the fatal error a run would have produced.
func (p *Pipeline) Inspect(recipe string, mode domain.ObsMode) ([]domain.CallNode, error) {
	if recipe == "" {
		return nil, fmt.Errorf("recipe name is required")
	}
	path, err := p.recipes.Find(recipe, mode)
	if err != nil {
		return nil, err
	}
	root, err := p.cache.Load(recipe, path, expand.ModeRecipe)
	if err != nil {
		return nil, err
	}

	nodes := []domain.CallNode{{
		Name:     recipe,
		Kind:     domain.CallRecipe,
		Path:     root.Path,
		Children: root.Children(),
		Engines:  root.Engines(),
	}}
	queue := append([]string(nil), root.Children()...)
	seen := map[string]bool{recipe: true}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		path, err := p.prims.Find(name, mode)
		if err != nil {
			nodes = append(nodes, domain.CallNode{Name: name, Kind: domain.CallPrimitive, Missing: true})
			continue
		}
		u, err := p.cache.Load(name, path, expand.ModePrimitive)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, domain.CallNode{
			Name:     name,
			Kind:     domain.CallPrimitive,
			Path:     u.Path,
			Children: u.Children(),
			Engines:  u.Engines(),
		})
		queue = append(queue, u.Children()...)
	}
	return nodes, nil
}

// Engines lists the configured engine names.
func (p *Pipeline) Engines() []string {
	return p.reg.Names()
}

// EngineDef returns the definition of a configured engine.
func (p *Pipeline) EngineDef(name string) (domain.EngineDef, bool) {
	return p.reg.Def(name)
}

// Launch starts every configured engine that is not already live. Engines
// normally launch lazily on first use; a health check wants them all up.
func (p *Pipeline) Launch(ctx context.Context) error {
	var err error
	for _, name := range p.reg.Names() {
		if _, lerr := p.reg.Lookup(ctx, name); lerr != nil {
			err = errors.Join(err, lerr)
		}
	}
	return err
}

// Verify probes every live engine and returns the responsive/unresponsive
// partition. Unresponsive engines are dropped and relaunch on next use.
func (p *Pipeline) Verify(ctx context.Context) (alive, dead []string) {
	return p.reg.VerifyAll(ctx)
}

// StatusHandler returns the HTTP handler exposing /healthz, /metrics and
// /engines for this pipeline.
func (p *Pipeline) StatusHandler() http.Handler {
	return httpapi.NewHandler(p.reg, p.met, p.log)
}

// Close shuts down every engine, tears down the protocol sessions and
// closes any sinks the pipeline opened itself.
func (p *Pipeline) Close(ctx context.Context) error {
	p.reg.Close()
	err := p.protos.Shutdown(ctx)
	for _, c := range p.owned {
		err = errors.Join(err, c.Close())
	}
	return err
}
