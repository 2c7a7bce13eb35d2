// Package msg is the task invocation adapter: a uniform obeyw, get, set and
// control surface over whatever protocol each engine speaks. Every operation
// normalizes protocol-specific failures into the domain vocabulary, and a
// death observed here detaches the engine so its next use relaunches.
package msg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Starlink/ORAC-DR-sub007/internal/engines"
	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Dispatcher implements ports.TaskDispatcher over the engine registry.
type Dispatcher struct {
	reg *engines.Registry
	log *slog.Logger
	met *metrics.Set
}

// NewDispatcher builds a dispatcher routing through reg.
func NewDispatcher(reg *engines.Registry, log *slog.Logger, met *metrics.Set) *Dispatcher {
	if log == nil {
		log = logging.NewNop()
	}
	return &Dispatcher{reg: reg, log: log, met: met}
}

// Obeyw runs a task on the named engine and waits for it to finish.
func (d *Dispatcher) Obeyw(ctx context.Context, engine, task string, args domain.Args) error {
	h, err := d.reg.Lookup(ctx, engine)
	if err != nil {
		return d.normalize(engine, task, args.String(), err)
	}
	start := time.Now()
	err = h.Conn.Obeyw(ctx, task, args)
	d.met.ObserveTask(engine, task, time.Since(start).Seconds())
	return d.normalize(engine, task, args.String(), err)
}

// GetPar reads a task parameter.
func (d *Dispatcher) GetPar(ctx context.Context, engine, task, param string) (string, error) {
	h, err := d.reg.Lookup(ctx, engine)
	if err != nil {
		return "", d.normalize(engine, task, param, err)
	}
	v, err := h.Conn.GetPar(ctx, task, param)
	if err != nil {
		return "", d.normalize(engine, task, param, err)
	}
	d.met.TaskCall(engine, task)
	return v, nil
}

// SetPar writes a task parameter.
func (d *Dispatcher) SetPar(ctx context.Context, engine, task, param, value string) error {
	h, err := d.reg.Lookup(ctx, engine)
	if err != nil {
		return d.normalize(engine, task, param+"="+value, err)
	}
	return d.normalize(engine, task, param+"="+value, h.Conn.SetPar(ctx, task, param, value))
}

// Control adjusts an engine-level setting, e.g. the working directory or a
// parameter reset, and returns the previous value where the protocol
// reports one.
func (d *Dispatcher) Control(ctx context.Context, engine, mode, value string) (string, error) {
	h, err := d.reg.Lookup(ctx, engine)
	if err != nil {
		return "", d.normalize(engine, "control", mode, err)
	}
	v, err := h.Conn.Control(ctx, mode, value)
	if err != nil {
		return "", d.normalize(engine, "control", mode, err)
	}
	d.met.TaskCall(engine, "control")
	return v, nil
}

// normalize maps an operation outcome onto the error taxonomy: nil stays
// nil; a canceled context is a user abort; an unconfigured engine is fatal;
// a connection-level failure drops the engine and surfaces as a dead-engine
// task error; anything else is a generic task failure with the original
// code preserved.
func (d *Dispatcher) normalize(engine, task, args string, err error) error {
	if err == nil {
		d.met.TaskCall(engine, task)
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrUserAbort, err)
	}

	if errors.Is(err, domain.ErrUnknownEngine) {
		fe := domain.Fatalf("", "", 0, "task %s/%s needs an engine that is not configured", engine, task)
		fe.Err = err
		return fe
	}

	if errors.Is(err, domain.ErrEngineDown) {
		d.reg.Drop(engine)
		d.met.TaskFailure(engine, task, "dead")
		d.log.Error("engine presumed dead", "engine", engine, "task", task, "err", err)
		return &domain.TaskError{Engine: engine, Task: task, Args: args, Err: err}
	}

	var te *domain.TaskError
	if errors.As(err, &te) {
		d.met.TaskFailure(engine, task, "fail")
		d.log.Error("task failed", "engine", engine, "task", task, "args", args, "code", te.Code)
		return &domain.TaskError{Engine: engine, Task: task, Args: args, Code: te.Code, Err: te.Err}
	}

	d.met.TaskFailure(engine, task, "fail")
	d.log.Error("task failed", "engine", engine, "task", task, "args", args, "err", err)
	return &domain.TaskError{Engine: engine, Task: task, Args: args, Err: err}
}
