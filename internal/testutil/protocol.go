package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// FakeConn is a scripted engine connection. It answers like a protocol
// session's connection would: nil on success, *domain.TaskError for task
// failures, and an error wrapping domain.ErrEngineDown once Dead is set.
type FakeConn struct {
	Ident  string
	Dead   bool
	Closed bool

	ObeywErr error
	Params   map[string]string // "task/param" → GetPar value
	Ops      []string
}

func (c *FakeConn) fail() error {
	return fmt.Errorf("peer %s vanished: %w", c.Ident, domain.ErrEngineDown)
}

func (c *FakeConn) Obeyw(_ context.Context, task string, args domain.Args) error {
	c.Ops = append(c.Ops, fmt.Sprintf("obeyw %s %s", task, args))
	if c.Dead {
		return c.fail()
	}
	return c.ObeywErr
}

func (c *FakeConn) GetPar(_ context.Context, task, param string) (string, error) {
	c.Ops = append(c.Ops, fmt.Sprintf("getpar %s %s", task, param))
	if c.Dead {
		return "", c.fail()
	}
	return c.Params[task+"/"+param], nil
}

func (c *FakeConn) SetPar(_ context.Context, task, param, value string) error {
	c.Ops = append(c.Ops, fmt.Sprintf("setpar %s %s=%s", task, param, value))
	if c.Dead {
		return c.fail()
	}
	return nil
}

func (c *FakeConn) Control(_ context.Context, mode, value string) (string, error) {
	c.Ops = append(c.Ops, fmt.Sprintf("control %s %s", mode, value))
	if c.Dead {
		return "", c.fail()
	}
	return "", nil
}

func (c *FakeConn) Ping(context.Context) error {
	if c.Dead {
		return c.fail()
	}
	return nil
}

func (c *FakeConn) Close() error {
	c.Closed = true
	return nil
}

// FakeSession is a scripted protocol session handing out FakeConns.
type FakeSession struct {
	Proto     string
	InitCount int
	Shutdowns int
	LaunchErr error
	NextDead  bool // newly launched conns start dead

	mu    sync.Mutex
	Conns []*FakeConn
}

func (s *FakeSession) Name() string { return s.Proto }

func (s *FakeSession) Init(context.Context) error {
	s.InitCount++
	return nil
}

func (s *FakeSession) Launch(_ context.Context, _ domain.EngineDef, ident string) (ports.ProtoConn, error) {
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &FakeConn{Ident: ident, Dead: s.NextDead, Params: make(map[string]string)}
	s.Conns = append(s.Conns, c)
	return c, nil
}

func (s *FakeSession) Shutdown(context.Context) error {
	s.Shutdowns++
	return nil
}

// FakeProtos is a trivial protocol registry over pre-built sessions. Init is
// called on first request, mirroring the production registry.
type FakeProtos struct {
	Sessions map[string]*FakeSession
	inited   map[string]bool
}

func (p *FakeProtos) Session(ctx context.Context, name string) (ports.ProtoSession, error) {
	s, ok := p.Sessions[name]
	if !ok {
		return nil, fmt.Errorf("no protocol %q", name)
	}
	if p.inited == nil {
		p.inited = make(map[string]bool)
	}
	if !p.inited[name] {
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		p.inited[name] = true
	}
	return s, nil
}
