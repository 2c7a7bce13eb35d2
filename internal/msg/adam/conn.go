package adam

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// pingTimeout bounds liveness probes separately from task calls: an engine
// that cannot acknowledge a ping quickly is as good as dead.
const pingTimeout = 10 * time.Second

// request is one line on the engine's stdin.
type request struct {
	ID    uint64            `json:"id"`
	Op    string            `json:"op"`
	Task  string            `json:"task,omitempty"`
	Param string            `json:"param,omitempty"`
	Value string            `json:"value,omitempty"`
	Mode  string            `json:"mode,omitempty"`
	Args  map[string]string `json:"args,omitempty"`
}

// response is one line on the engine's stdout. Status zero is success;
// anything else is the engine's own failure code.
type response struct {
	ID      uint64 `json:"id"`
	Status  int    `json:"status"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// conn is one live engine subprocess. Requests are strictly serialized; the
// reply to a request that already timed out is discarded by ID.
type conn struct {
	ident   string
	cmd     *exec.Cmd // nil when wired over in-memory pipes
	stdin   io.WriteCloser
	enc     *json.Encoder
	timeout time.Duration
	log     *slog.Logger

	mu  sync.Mutex // one outstanding request at a time
	seq uint64

	respCh  chan response
	done    chan struct{} // closed when the engine's stdout ends
	closing chan struct{}
	once    sync.Once
}

func newConn(ident string, out io.Reader, in io.WriteCloser, timeout time.Duration, log *slog.Logger) *conn {
	if log == nil {
		log = logging.NewNop()
	}
	c := &conn{
		ident:   ident,
		stdin:   in,
		enc:     json.NewEncoder(in),
		timeout: timeout,
		log:     log,
		respCh:  make(chan response, 1),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.read(json.NewDecoder(out))
	return c
}

func (c *conn) read(dec *json.Decoder) {
	defer close(c.done)
	for {
		var r response
		if err := dec.Decode(&r); err != nil {
			return
		}
		select {
		case c.respCh <- r:
		case <-c.closing:
			return
		}
	}
}

func (c *conn) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		c.log.Debug("engine stderr", "engine", c.ident, "line", sc.Text())
	}
}

// gone wraps a transport-level failure so callers recognize a dead engine.
func (c *conn) gone(err error) error {
	if err == nil {
		return fmt.Errorf("engine %s: %w", c.ident, domain.ErrEngineDown)
	}
	return fmt.Errorf("engine %s: %s: %w", c.ident, err, domain.ErrEngineDown)
}

// call sends one request and waits for its reply within d.
func (c *conn) call(ctx context.Context, req request, d time.Duration) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return response{}, c.gone(errors.New("output stream ended"))
	default:
	}

	c.seq++
	req.ID = c.seq
	if err := c.enc.Encode(req); err != nil {
		return response{}, c.gone(err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case r := <-c.respCh:
			if r.ID != req.ID {
				// A late reply to a request that already timed out.
				continue
			}
			return r, nil
		case <-c.done:
			return response{}, c.gone(errors.New("output stream ended"))
		case <-timer.C:
			return response{}, c.gone(fmt.Errorf("no reply within %s", d))
		case <-ctx.Done():
			return response{}, ctx.Err()
		}
	}
}

func (c *conn) Obeyw(ctx context.Context, task string, args domain.Args) error {
	r, err := c.call(ctx, request{Op: "obeyw", Task: task, Args: args}, c.timeout)
	if err != nil {
		return err
	}
	return taskStatus(task, r)
}

func (c *conn) GetPar(ctx context.Context, task, param string) (string, error) {
	r, err := c.call(ctx, request{Op: "getpar", Task: task, Param: param}, c.timeout)
	if err != nil {
		return "", err
	}
	if err := taskStatus(task, r); err != nil {
		return "", err
	}
	return r.Value, nil
}

func (c *conn) SetPar(ctx context.Context, task, param, value string) error {
	r, err := c.call(ctx, request{Op: "setpar", Task: task, Param: param, Value: value}, c.timeout)
	if err != nil {
		return err
	}
	return taskStatus(task, r)
}

func (c *conn) Control(ctx context.Context, mode, value string) (string, error) {
	r, err := c.call(ctx, request{Op: "control", Mode: mode, Value: value}, c.timeout)
	if err != nil {
		return "", err
	}
	if err := taskStatus("control", r); err != nil {
		return "", err
	}
	return r.Value, nil
}

func (c *conn) Ping(ctx context.Context) error {
	r, err := c.call(ctx, request{Op: "ping"}, pingTimeout)
	if err != nil {
		return err
	}
	return taskStatus("ping", r)
}

// Close stops the subprocess: stdin EOF first so a well-behaved engine can
// exit on its own, then a kill if it lingers. Safe to call more than once.
func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.closing)
		_ = c.stdin.Close()
		if c.cmd != nil && c.cmd.Process != nil {
			t := time.AfterFunc(2*time.Second, func() { _ = c.cmd.Process.Kill() })
			err := c.cmd.Wait()
			t.Stop()
			c.log.Debug("engine subprocess exited", "engine", c.ident, "err", err)
		}
	})
	return nil
}

// taskStatus converts a non-zero status record into a task error the
// dispatcher can enrich with the engine name and argument string.
func taskStatus(task string, r response) error {
	if r.Status == 0 {
		return nil
	}
	te := &domain.TaskError{Task: task, Code: r.Status}
	if r.Message != "" {
		te.Err = errors.New(r.Message)
	}
	return te
}
