// Package testutil carries fixtures shared by the engine test suites:
// on-disk primitive trees and a scripted task dispatcher.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// WriteTree writes the given relative-path→content files under dir, creating
// directories as needed, and fails the test on any error.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

// Dispatcher is a scripted task dispatcher. It records every operation in
// order and answers from its tables; unkeyed operations succeed.
type Dispatcher struct {
	Calls  []string
	Fail   map[string]error  // "engine/task" → error returned by Obeyw
	Params map[string]string // "engine/task/param" → GetPar value
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Fail:   make(map[string]error),
		Params: make(map[string]string),
	}
}

func (d *Dispatcher) Obeyw(_ context.Context, engine, task string, args domain.Args) error {
	d.Calls = append(d.Calls, fmt.Sprintf("obeyw %s/%s %s", engine, task, args))
	if err := d.Fail[engine+"/"+task]; err != nil {
		return err
	}
	return nil
}

func (d *Dispatcher) GetPar(_ context.Context, engine, task, param string) (string, error) {
	d.Calls = append(d.Calls, fmt.Sprintf("getpar %s/%s %s", engine, task, param))
	if v, ok := d.Params[engine+"/"+task+"/"+param]; ok {
		return v, nil
	}
	return "", nil
}

func (d *Dispatcher) SetPar(_ context.Context, engine, task, param, value string) error {
	d.Calls = append(d.Calls, fmt.Sprintf("setpar %s/%s %s=%s", engine, task, param, value))
	return nil
}

func (d *Dispatcher) Control(_ context.Context, engine, mode, value string) (string, error) {
	d.Calls = append(d.Calls, fmt.Sprintf("control %s/%s %s", engine, mode, value))
	return "", nil
}

// CountCalls returns how many recorded calls start with prefix.
func (d *Dispatcher) CountCalls(prefix string) int {
	n := 0
	for _, c := range d.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Display is a recording display sink.
type Display struct {
	Events []domain.DisplayEvent
}

func (d *Display) Display(_ context.Context, ev domain.DisplayEvent) error {
	d.Events = append(d.Events, ev)
	return nil
}

// SinkRecorder is a recording event sink.
type SinkRecorder struct {
	Events []domain.DisplayEvent
	Closed bool
	Err    error // returned by Emit when set
}

func (s *SinkRecorder) Emit(_ context.Context, ev domain.DisplayEvent) error {
	if s.Err != nil {
		return s.Err
	}
	s.Events = append(s.Events, ev)
	return nil
}

func (s *SinkRecorder) Close() error {
	s.Closed = true
	return nil
}
