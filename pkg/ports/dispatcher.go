package ports

import (
	"context"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// TaskDispatcher defines how primitives reach external computation engines.
// The executor emits task requests, and the host implements this interface to
// route them, launching engines on first use and normalizing failures into
// the domain error vocabulary.
type TaskDispatcher interface {
	// Obeyw runs a task on an engine and waits for completion.
	Obeyw(ctx context.Context, engine, task string, args domain.Args) error

	// GetPar reads a task parameter after a run.
	GetPar(ctx context.Context, engine, task, param string) (string, error)

	// SetPar writes a task parameter before a run.
	SetPar(ctx context.Context, engine, task, param, value string) error

	// Control adjusts engine-level settings such as the working directory.
	Control(ctx context.Context, engine, mode, value string) (string, error)
}
