// Package display builds the display backend for a run. The set of
// backends is closed: events go nowhere, into the structured log, or onto
// the progress-monitor event stream. Selecting an unknown kind is a
// configuration error raised at construction, never a run-time capability
// probe.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
	"github.com/Starlink/ORAC-DR-sub007/pkg/ports"
)

// Kind names a display backend.
type Kind string

const (
	KindNone    Kind = "none"
	KindLog     Kind = "log"
	KindMonitor Kind = "monitor"
)

// ErrUnknownKind reports a display kind outside the closed set.
var ErrUnknownKind = errors.New("unknown display kind")

// ParseKind validates a user-supplied backend name. Empty selects KindNone.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindNone:
		return KindNone, nil
	case KindLog:
		return KindLog, nil
	case KindMonitor:
		return KindMonitor, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// New builds the backend for kind. KindMonitor needs the event sink the
// records should land in; the other kinds ignore it.
func New(kind Kind, sink ports.EventSink, log *slog.Logger) (domain.Display, error) {
	switch kind {
	case KindNone:
		return null{}, nil
	case KindLog:
		if log == nil {
			return nil, errors.New("log display needs a logger")
		}
		return logDisplay{log: log}, nil
	case KindMonitor:
		if sink == nil {
			return nil, errors.New("monitor display needs an event sink")
		}
		return sinkDisplay{sink: sink}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

type null struct{}

func (null) Display(context.Context, domain.DisplayEvent) error { return nil }

type logDisplay struct {
	log *slog.Logger
}

func (d logDisplay) Display(_ context.Context, ev domain.DisplayEvent) error {
	d.log.Info("display",
		"class", ev.Class,
		"files", strings.Join(ev.Files, ","),
		"step", ev.Extras["step"],
	)
	return nil
}

type sinkDisplay struct {
	sink ports.EventSink
}

func (d sinkDisplay) Display(ctx context.Context, ev domain.DisplayEvent) error {
	return d.sink.Emit(ctx, ev)
}
