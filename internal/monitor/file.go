package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// FileSink appends event records to the log file, one line per event,
// unbuffered so a tailing process sees each step as it lands.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens (or creates) the event log for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Emit(_ context.Context, ev domain.DisplayEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.f, FromEvent(ev).String()); err != nil {
		return fmt.Errorf("append event record: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
