package expand

// Node is one parsed statement of a primitive body. The expander produces a
// tagged-variant tree and the executor switches on the concrete type; there
// is no generic "evaluate this text" path.
type Node interface {
	// Pos returns the 1-based line in the original source.
	Pos() int
	isNode()
}

// Text is an inert line: blank, comment, documentation, or free text. It is
// carried through expansion untouched and skipped by the executor.
type Text struct {
	Line int
	Raw  string
	Pod  bool // inside a documentation block
}

// Directive is a nested primitive invocation: `_NAME_ key=value ...`.
type Directive struct {
	Line    int
	Raw     string
	Child   string
	Args    []ArgToken
	Ordinal int // nth textual invocation of Child by this source
}

// TaskCall is a synchronous engine task invocation:
// `obeyw ENGINE TASK argument-string`. The argument string is interpolated
// and parsed when the call runs, not at expansion time.
type TaskCall struct {
	Line   int
	Raw    string
	Engine string
	Task   string
	ArgStr string
}

// StatusOp enumerates the status-bearing right-hand sides a checkpoint line
// may carry.
type StatusOp int

const (
	OpOK StatusOp = iota
	OpBad
	OpGetPar
	OpSetPar
	OpControl
)

func (o StatusOp) String() string {
	switch o {
	case OpOK:
		return "ok"
	case OpBad:
		return "bad"
	case OpGetPar:
		return "getpar"
	case OpSetPar:
		return "setpar"
	case OpControl:
		return "control"
	}
	return "?"
}

// StatusCheck is a status checkpoint: an assignment whose right-hand side
// carries an engine status. The expander inserts the non-success check; a
// commented-out assignment never reaches this node kind.
type StatusCheck struct {
	Line     int
	Raw      string
	Dest     string   // receiving binding; StatusBinding when only the status matters
	Op       StatusOp
	Operands []string // engine/task/parameter/value parts, op-dependent
}

// Assign binds an interpolated value to a local name: `NAME = value`.
// Plain assignments carry no status and get no inserted check.
type Assign struct {
	Line  int
	Raw   string
	Name  string
	Value string
}

func (n *Text) Pos() int        { return n.Line }
func (n *Directive) Pos() int   { return n.Line }
func (n *TaskCall) Pos() int    { return n.Line }
func (n *StatusCheck) Pos() int { return n.Line }
func (n *Assign) Pos() int      { return n.Line }

func (*Text) isNode()        {}
func (*Directive) isNode()   {}
func (*TaskCall) isNode()    {}
func (*StatusCheck) isNode() {}
func (*Assign) isNode()      {}
