package msg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// Protocols holds every protocol session the process knows about and
// initializes each one exactly once, on the first request for it. All
// engines speaking the same protocol share the single initialized session.
type Protocols struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]ports.ProtoSession
	inited   map[string]bool
}

// NewProtocols registers the given sessions under their Name(). None of them
// is initialized until an engine launch asks for it.
func NewProtocols(log *slog.Logger, sessions ...ports.ProtoSession) *Protocols {
	if log == nil {
		log = logging.NewNop()
	}
	p := &Protocols{
		log:      log,
		sessions: make(map[string]ports.ProtoSession, len(sessions)),
		inited:   make(map[string]bool, len(sessions)),
	}
	for _, s := range sessions {
		p.sessions[s.Name()] = s
	}
	return p
}

// Session returns the session for the named protocol, initializing it on
// first use. A failed initialization is not remembered: the next request
// tries again.
func (p *Protocols) Session(ctx context.Context, name string) (ports.ProtoSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[name]
	if !ok {
		return nil, fmt.Errorf("protocol %q is not registered", name)
	}
	if !p.inited[name] {
		if err := s.Init(ctx); err != nil {
			return nil, fmt.Errorf("initialize protocol %s: %w", name, err)
		}
		p.inited[name] = true
		p.log.Info("protocol initialized", "protocol", name)
	}
	return s, nil
}

// Names lists the registered protocols in sorted order.
func (p *Protocols) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown tears down every protocol that was initialized, in sorted order,
// and reports the combined failures.
func (p *Protocols) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	var live []string
	for name := range p.inited {
		live = append(live, name)
	}
	sort.Strings(live)
	p.mu.Unlock()

	var errs []error
	for _, name := range live {
		p.mu.Lock()
		s := p.sessions[name]
		delete(p.inited, name)
		p.mu.Unlock()
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown protocol %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
