package ports

import (
	"context"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// EventSink receives display events emitted while a recipe runs. Sinks are
// how progress leaves the process: a log line, an append-only monitor file
// that a separate viewer tails, a Redis list.
type EventSink interface {
	Emit(ctx context.Context, ev domain.DisplayEvent) error
	Close() error
}
