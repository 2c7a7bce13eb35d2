package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Display is the sink for display-worthy reduction products. Implementations
// form a closed set chosen by configuration; a recipe never probes for
// capabilities at run time.
type Display interface {
	Display(ctx context.Context, ev DisplayEvent) error
}

// DisplayEvent describes one display-worthy step. Its fields map one-to-one
// onto the progress-monitor record format:
// "<data-class> <comma-separated-files> <use-display-definition-flag> key=value...".
type DisplayEvent struct {
	Class  string            // data class, e.g. "frame" or "group"
	Files  []string          // files making up the product
	UseDef bool              // whether the display definition applies
	Extras map[string]string // free-form annotations (step name, status, run id)
}

// Calibration resolves calibration products for a frame. Index files and
// their selection rules live behind this boundary; the pipeline core only
// ever asks for the best product of a kind.
type Calibration interface {
	// Get returns the calibration product of the given kind (e.g. "dark",
	// "flat") appropriate for the frame.
	Get(kind string, f *Frame) (string, error)
}

// RecipeContext is the mutable state shared by reference across all call
// frames of one recipe execution: the data handles, the calibration and
// display collaborators, recipe parameters, and the per-primitive table of
// most recently supplied arguments.
type RecipeContext struct {
	RunID      string
	Instrument string
	Recipe     string // recipe being executed, set by the runtime
	Object     string // object name for parameter-file overrides, may be empty

	Frame   *Frame
	Group   *Group
	Cal     Calibration
	Display Display

	// Params holds recipe-parameter values for the active recipe/object,
	// flattened to key=value. Keys of the form "_PRIM_NAME_.key" override the
	// named primitive's directive arguments.
	Params map[string]string

	// primArgs is the per-name table of most recently supplied arguments.
	// Later primitives may read (but not modify) what an earlier call passed.
	primArgs map[string]Args
}

// NewRecipeContext builds a context for one recipe run with a fresh run id.
func NewRecipeContext(instrument string, frame *Frame) *RecipeContext {
	return &RecipeContext{
		RunID:      uuid.NewString(),
		Instrument: instrument,
		Frame:      frame,
		Group:      NewGroup("group"),
		Params:     make(map[string]string),
		primArgs:   make(map[string]Args),
	}
}

// ObsMode returns the current observing mode, taken from the frame header.
func (rc *RecipeContext) ObsMode() ObsMode {
	if rc.Frame == nil {
		return ModeUnknown
	}
	return rc.Frame.Mode
}

// StoreArgs records args as the most recent invocation arguments for name.
// A repeated invocation overwrites the slot: most recent wins.
func (rc *RecipeContext) StoreArgs(name string, args Args) {
	if rc.primArgs == nil {
		rc.primArgs = make(map[string]Args)
	}
	rc.primArgs[name] = args.Clone()
}

// ArgsFor returns a copy of the arguments name was last invoked with.
// Requesting a primitive that has never been invoked in this run is a fatal
// condition; the diagnostic names both the requester and the target.
func (rc *RecipeContext) ArgsFor(name, requester string) (Args, error) {
	args, ok := rc.primArgs[name]
	if !ok {
		return nil, Fatalf(requester, "", 0,
			"%s requested the arguments of %s, which has not been invoked in this run", requester, name)
	}
	return args.Clone(), nil
}

// CallFrame is the transient record pushed for each primitive invocation. It
// exists for diagnostics only and is discarded when the invocation returns.
type CallFrame struct {
	Primitive string // callee
	Caller    string // invoking primitive or recipe
	Line      int    // line in the caller's original source
	Ordinal   int    // how many times the caller has invoked this callee so far
	Depth     int    // recursion depth of this frame, 1-based
}

func (f CallFrame) String() string {
	return fmt.Sprintf("%s <- %s:%d (call %d, depth %d)",
		f.Primitive, f.Caller, f.Line, f.Ordinal, f.Depth)
}
