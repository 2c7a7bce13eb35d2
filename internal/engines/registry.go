// Package engines manages the lifecycle of external computation engines.
// Engines are launched lazily on first use, probed for liveness, and
// forgotten once presumed dead so the next use starts a fresh process under
// a fresh protocol identity.
package engines

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// DefaultVerifyTimeout bounds each probe of the bulk verify; it is shorter
// than ordinary protocol timeouts so a sweep over many engines stays fast.
const DefaultVerifyTimeout = 2 * time.Second

// Handle is one live engine: its definition, the protocol identity it was
// launched under, and the open connection.
type Handle struct {
	Name  string
	Ident string
	Def   domain.EngineDef
	Conn  ports.ProtoConn
}

// Registry tracks engines by name. The lifecycle per name runs
// absent → launching → live → dead: no map entry means absent, Lookup covers
// launching, a map entry is live, and death removes the entry again.
type Registry struct {
	defs   map[string]domain.EngineDef
	protos ports.ProtocolRegistry
	log    *slog.Logger
	met    *metrics.Set

	verifyTimeout time.Duration

	mu   sync.Mutex
	live map[string]*Handle
	seq  map[string]int
}

// NewRegistry builds a registry over the configured engine definitions.
func NewRegistry(defs map[string]domain.EngineDef, protos ports.ProtocolRegistry, log *slog.Logger, met *metrics.Set) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	return &Registry{
		defs:          defs,
		protos:        protos,
		log:           log,
		met:           met,
		verifyTimeout: DefaultVerifyTimeout,
		live:          make(map[string]*Handle),
		seq:           make(map[string]int),
	}
}

// SetVerifyTimeout overrides the bulk-verify probe timeout.
func (r *Registry) SetVerifyTimeout(d time.Duration) { r.verifyTimeout = d }

// Lookup returns the live handle for name, launching the engine on first
// use. A fresh launch mints a protocol identity never used before by this
// process, so stale server-side state from a previous incarnation cannot
// collide with the new one.
func (r *Registry) Lookup(ctx context.Context, name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.live[name]; ok {
		return h, nil
	}

	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEngine, name)
	}

	r.seq[name]++
	ident := fmt.Sprintf("%s_%d_%d", name, os.Getpid(), r.seq[name])

	sess, err := r.protos.Session(ctx, def.Protocol)
	if err != nil {
		return nil, fmt.Errorf("protocol %s for engine %s: %w: %v", def.Protocol, name, domain.ErrEngineDown, err)
	}
	conn, err := sess.Launch(ctx, def, ident)
	if err != nil {
		return nil, fmt.Errorf("launch %s as %s: %w: %v", name, ident, domain.ErrEngineDown, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("engine %s (%s) never came up: %w: %v", name, ident, domain.ErrEngineDown, err)
	}

	h := &Handle{Name: name, Ident: ident, Def: def, Conn: conn}
	r.live[name] = h
	r.met.EngineLaunch(name)
	r.log.Info("engine launched", "engine", name, "ident", ident, "protocol", def.Protocol)
	return h, nil
}

// Drop forgets the engine so the next lookup starts over at absent.
// Dropping an engine that is not live is a no-op.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	h, ok := r.live[name]
	if ok {
		delete(r.live, name)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	h.Conn.Close()
	r.met.EngineDeath(name)
	r.log.Warn("engine dropped", "engine", name, "ident", h.Ident)
}

// VerifyAll probes every live engine under the shortened verify timeout and
// returns the partition of responsive and unresponsive names, both sorted.
// Unresponsive engines are dropped as a side effect.
func (r *Registry) VerifyAll(ctx context.Context) (alive, dead []string) {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.live))
	for _, h := range r.live {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		probeCtx, cancel := context.WithTimeout(ctx, r.verifyTimeout)
		err := h.Conn.Ping(probeCtx)
		cancel()
		if err != nil {
			dead = append(dead, h.Name)
			r.Drop(h.Name)
			continue
		}
		alive = append(alive, h.Name)
	}
	sort.Strings(alive)
	sort.Strings(dead)
	return alive, dead
}

// Names lists every configured engine name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Def returns the definition for a configured engine.
func (r *Registry) Def(name string) (domain.EngineDef, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// LiveIdents maps live engine names to their current protocol identities.
func (r *Registry) LiveIdents() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.live))
	for n, h := range r.live {
		out[n] = h.Ident
	}
	return out
}

// Close drops every live engine.
func (r *Registry) Close() {
	r.mu.Lock()
	names := make([]string, 0, len(r.live))
	for n := range r.live {
		names = append(names, n)
	}
	r.mu.Unlock()

	for _, n := range names {
		r.Drop(n)
	}
}
