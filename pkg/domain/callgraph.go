package domain

// CallKind classifies a call-graph node by the source kind it was compiled
// from.
type CallKind string

const (
	CallRecipe    CallKind = "recipe"
	CallPrimitive CallKind = "primitive"
)

// CallNode is one source in a recipe's static call graph. Children holds the
// primitives the source invokes, in first-use order; Engines holds the
// engines its task calls and status checkpoints name literally. A node whose
// source could not be resolved carries Missing and nothing else.
type CallNode struct {
	Name     string
	Kind     CallKind
	Path     string
	Missing  bool
	Children []string
	Engines  []string
}
