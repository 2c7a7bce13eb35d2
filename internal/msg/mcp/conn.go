package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

const pingTimeout = 10 * time.Second

// rpc is the slice of the MCP client a connection needs.
type rpc interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	Ping(ctx context.Context) error
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// conn is one live MCP engine.
type conn struct {
	ident   string
	rpc     rpc
	timeout time.Duration
	log     *slog.Logger
}

func newConn(ident string, rpc rpc, timeout time.Duration, log *slog.Logger) *conn {
	if log == nil {
		log = logging.NewNop()
	}
	return &conn{ident: ident, rpc: rpc, timeout: timeout, log: log}
}

func (c *conn) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "oracdr", Version: "1.0"}

	res, err := c.rpc.Initialize(ctx, req)
	if err != nil {
		return err
	}
	c.log.Debug("engine session initialized", "engine", c.ident, "server", res.ServerInfo.Name)
	return nil
}

// gone wraps a transport-level failure so callers recognize a dead engine.
// A canceled context is the operator's doing and passes through untouched.
func (c *conn) gone(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("engine %s: %s: %w", c.ident, err, domain.ErrEngineDown)
}

// callTool invokes one reserved tool and returns the result's text. The
// task label only feeds error reports.
func (c *conn) callTool(ctx context.Context, tool, task string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := c.rpc.CallTool(ctx, req)
	if err != nil {
		return "", c.gone(err)
	}
	text := firstText(res)
	if res.IsError {
		return "", taskFailure(task, text)
	}
	return text, nil
}

func (c *conn) Obeyw(ctx context.Context, task string, args domain.Args) error {
	_, err := c.callTool(ctx, "obeyw", task, map[string]any{
		"task": task,
		"args": map[string]string(args),
	})
	return err
}

func (c *conn) GetPar(ctx context.Context, task, param string) (string, error) {
	return c.callTool(ctx, "getpar", task, map[string]any{
		"task":  task,
		"param": param,
	})
}

func (c *conn) SetPar(ctx context.Context, task, param, value string) error {
	_, err := c.callTool(ctx, "setpar", task, map[string]any{
		"task":  task,
		"param": param,
		"value": value,
	})
	return err
}

func (c *conn) Control(ctx context.Context, mode, value string) (string, error) {
	return c.callTool(ctx, "control", "control", map[string]any{
		"mode":  mode,
		"value": value,
	})
}

func (c *conn) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.rpc.Ping(ctx); err != nil {
		return c.gone(err)
	}
	return nil
}

func (c *conn) Close() error { return c.rpc.Close() }

func firstText(res *mcp.CallToolResult) string {
	for _, item := range res.Content {
		switch tc := item.(type) {
		case mcp.TextContent:
			return tc.Text
		case *mcp.TextContent:
			return tc.Text
		}
	}
	return ""
}

// failure is the record engines use to report a raw status code through a
// tool error. Plain-text errors are carried as the message alone.
type failure struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func taskFailure(task, text string) error {
	var f failure
	if err := json.Unmarshal([]byte(text), &f); err == nil && (f.Status != 0 || f.Message != "") {
		te := &domain.TaskError{Task: task, Code: f.Status}
		if f.Message != "" {
			te.Err = errors.New(f.Message)
		}
		return te
	}
	if text == "" {
		text = "tool reported an error"
	}
	return &domain.TaskError{Task: task, Err: errors.New(text)}
}
