package domain

import "errors"

// Status is the three-way normalization of protocol-specific task outcomes.
// Every adapter operation collapses whatever its wire protocol reports into
// one of these classes; raw codes survive inside TaskError for diagnostics.
type Status int

const (
	// StatusOK is the generic success code all task results are compared against.
	StatusOK Status = iota
	// StatusFail is any non-success outcome that does not implicate the
	// engine itself. The engine stays registered.
	StatusFail
	// StatusDeadEngine is a connection-level failure (engine not found,
	// protocol timeout, broken transport). The caller must detach the engine
	// so the next use relaunches it.
	StatusDeadEngine
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFail:
		return "fail"
	case StatusDeadEngine:
		return "dead-engine"
	}
	return "unknown"
}

// StatusOf classifies the error returned by a task invocation.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrEngineDown):
		return StatusDeadEngine
	default:
		return StatusFail
	}
}
