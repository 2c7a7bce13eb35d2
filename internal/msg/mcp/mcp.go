// Package mcp speaks to task engines that expose the classic control verbs
// as Model Context Protocol tools. Each engine is an MCP server subprocess
// reached over stdio; the four reserved tools obeyw, getpar, setpar and
// control mirror the operations every protocol adapter provides.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// Protocol is the name engine definitions use to select this adapter.
const Protocol = "mcp"

// DefaultTimeout bounds a single tool call.
const DefaultTimeout = 2 * time.Minute

// Session launches MCP engine subprocesses and tracks them for shutdown.
type Session struct {
	log     *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	conns []*conn
}

// NewSession builds an uninitialized session. A timeout of zero selects
// DefaultTimeout.
func NewSession(log *slog.Logger, timeout time.Duration) *Session {
	if log == nil {
		log = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{log: log, timeout: timeout}
}

func (s *Session) Name() string { return Protocol }

// Init has nothing process-wide to prepare: every engine carries its own
// server.
func (s *Session) Init(context.Context) error { return nil }

// Launch starts the engine subprocess and performs the protocol handshake.
func (s *Session) Launch(ctx context.Context, def domain.EngineDef, ident string) (ports.ProtoConn, error) {
	env := []string{"ORAC_ENGINE_IDENT=" + ident}
	for _, k := range sortedKeys(def.Env) {
		env = append(env, k+"="+def.Env[k])
	}

	cli, err := client.NewStdioMCPClient(def.Path, env, def.Args...)
	if err != nil {
		return nil, fmt.Errorf("launch %s (%s): %w", ident, def.Path, err)
	}

	c := newConn(ident, cli, s.timeout, s.log)
	if err := c.initialize(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("initialize %s: %w", ident, err)
	}

	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	s.log.Debug("engine server started", "engine", ident, "path", def.Path)
	return c, nil
}

// Shutdown closes every connection this session ever launched.
func (s *Session) Shutdown(context.Context) error {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
