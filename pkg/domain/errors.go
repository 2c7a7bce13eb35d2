package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserAbort marks an operator-requested stop. It propagates like a fatal
// condition but callers must not report it as an error.
var ErrUserAbort = errors.New("user abort")

// ErrEngineDown marks a task invocation that failed because the external
// engine is unreachable (launch failure, timeout, broken transport). The
// primitive fails and the Engine Registry drops the handle so the next call
// to the same engine name starts from a fresh launch.
var ErrEngineDown = errors.New("engine presumed dead")

// ErrUnknownEngine is returned when a task names an engine that has no entry
// in the engine definition file.
var ErrUnknownEngine = errors.New("engine not configured")

// FatalError aborts the whole recipe run immediately: malformed recipe,
// missing primitive, compile error, recursion ceiling exceeded, invalid
// argument syntax. It is propagated unchanged through every enclosing call
// frame so the original primitive, file and line survive to the top.
type FatalError struct {
	Primitive string // primitive (or recipe) being processed
	File      string // resolved source path, empty if not yet resolved
	Line      int    // 1-based line in the original (non-expanded) source, 0 if unknown
	Msg       string
	Err       error // optional cause
}

func (e *FatalError) Error() string {
	var b strings.Builder
	b.WriteString("fatal: ")
	b.WriteString(e.Msg)
	if e.Primitive != "" {
		fmt.Fprintf(&b, " [in %s", e.Primitive)
		if e.File != "" {
			fmt.Fprintf(&b, " at %s", e.File)
			if e.Line > 0 {
				fmt.Fprintf(&b, ":%d", e.Line)
			}
		} else if e.Line > 0 {
			fmt.Fprintf(&b, " line %d", e.Line)
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf builds a FatalError located at the given primitive source line.
func Fatalf(primitive, file string, line int, format string, a ...any) *FatalError {
	return &FatalError{
		Primitive: primitive,
		File:      file,
		Line:      line,
		Msg:       fmt.Sprintf(format, a...),
	}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// TaskError describes a non-success status from an engine task invocation.
// The raw protocol code is preserved for diagnostics; the task name and
// argument string identify what was being attempted. A TaskError does not
// invalidate the engine unless it wraps ErrEngineDown.
type TaskError struct {
	Engine string
	Task   string
	Args   string
	Code   int   // raw protocol status code, 0 when the failure is transport-level
	Err    error // optional underlying cause (transport error, ErrEngineDown, ...)
}

func (e *TaskError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s/%s failed", e.Engine, e.Task)
	if e.Args != "" {
		fmt.Fprintf(&b, " (args %q)", e.Args)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, " with status %d", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TaskError) Unwrap() error { return e.Err }
