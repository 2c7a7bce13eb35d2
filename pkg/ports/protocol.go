package ports

import (
	"context"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// ProtoConn is one live connection to a launched engine process. Connections
// carry the same four operations as the dispatcher, minus the engine name:
// the connection already knows who it is talking to.
type ProtoConn interface {
	Obeyw(ctx context.Context, task string, args domain.Args) error
	GetPar(ctx context.Context, task, param string) (string, error)
	SetPar(ctx context.Context, task, param, value string) error
	Control(ctx context.Context, mode, value string) (string, error)

	// Ping checks liveness without side effects.
	Ping(ctx context.Context) error

	// Close tears down the connection and the underlying process.
	Close() error
}

// ProtoSession is a protocol family (ADAM messaging, MCP, ...). A session is
// initialized exactly once before its first launch; initializing a protocol
// nobody ends up using is wasted startup time, so hosts defer Init until a
// definition names the protocol.
type ProtoSession interface {
	// Name reports the protocol name engine definitions refer to.
	Name() string

	// Init prepares process-wide protocol state. Called once per process.
	Init(ctx context.Context) error

	// Launch starts the engine described by def and connects to it. The ident
	// is the registry-minted identity the process should be visible under.
	Launch(ctx context.Context, def domain.EngineDef, ident string) (ProtoConn, error)

	// Shutdown releases process-wide protocol state.
	Shutdown(ctx context.Context) error
}

// ProtocolRegistry hands out protocol sessions by name, initializing each
// protocol on first request and returning the same session afterwards.
type ProtocolRegistry interface {
	Session(ctx context.Context, name string) (ProtoSession, error)
}
