// Package adam speaks to task engines launched as subprocesses, one request
// at a time, as newline-delimited JSON over the engine's stdin and stdout.
// The engine is expected to answer every request with a status record; a
// missing or late answer is treated as a death, never retried here.
package adam

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// Protocol is the name engine definitions use to select this adapter.
const Protocol = "adam"

// DefaultTimeout bounds how long a task call may run before the engine is
// presumed dead. Reductions of large frames are slow, so this is generous.
const DefaultTimeout = 10 * time.Minute

// Session launches and tracks every subprocess engine in the run. It owns a
// scratch directory the engines share for their rendezvous files.
type Session struct {
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	scratch string
	conns   []*conn
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

// Init creates the shared scratch directory. It runs once per process, on
// the first engine launch that needs this protocol.
func (s *Session) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scratch != "" {
		return nil
	}
	dir, err := os.MkdirTemp("", "adam-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	s.scratch = dir
	s.log.Debug("messaging scratch directory created", "dir", dir)
	return nil
}

// Launch starts the engine subprocess described by def and wires a
// connection to its stdio. The caller pings the result before use.
func (s *Session) Launch(_ context.Context, def domain.EngineDef, ident string) (ports.ProtoConn, error) {
	s.mu.Lock()
	scratch := s.scratch
	s.mu.Unlock()

	cmd := exec.Command(def.Path, def.Args...)
	cmd.Env = append(os.Environ(),
		"ADAM_USER="+scratch,
		"ORAC_ENGINE_IDENT="+ident,
	)
	for _, k := range sortedKeys(def.Env) {
		cmd.Env = append(cmd.Env, k+"="+def.Env[k])
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", ident, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", ident, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", ident, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s (%s): %w", ident, def.Path, err)
	}

	c := newConn(ident, stdout, stdin, s.timeout, s.log)
	c.cmd = cmd
	go c.drainStderr(stderr)

	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	s.log.Debug("engine subprocess started", "engine", ident, "path", def.Path, "pid", cmd.Process.Pid)
	return c, nil
}

// Shutdown closes every connection this session ever launched and removes
// the scratch directory. Connections already closed by the registry are
// skipped by their own close guard.
func (s *Session) Shutdown(context.Context) error {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	scratch := s.scratch
	s.scratch = ""
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	if scratch != "" {
		if err := os.RemoveAll(scratch); err != nil {
			return fmt.Errorf("remove scratch directory: %w", err)
		}
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
