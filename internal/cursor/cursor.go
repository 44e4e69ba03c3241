// Package cursor defines the read-only view over a lazily evaluated
// attribute tree that the core requires from an external evaluator
// (§4.2). The core never constructs a Cursor itself; it only consumes
// one handed to Scraper/Registry by the host.
package cursor

// Cursor is a cheap, read-only handle into one node of a lazily evaluated
// attribute tree. Evaluation errors are caught per call, not per cursor:
// a Cursor that will fail to evaluate a field still exists and can be
// asked about other fields.
type Cursor interface {
	// MaybeChild returns the named child, or nil if it does not exist.
	MaybeChild(name string) (Cursor, error)

	// Children iterates this node's children in the evaluator's stable
	// declared order. The callback stops iteration by returning a
	// non-nil error, which Children then returns unwrapped.
	Children(yield func(name string, child Cursor) error) error

	// IsDerivation reports whether this node is `type = "derivation"`.
	IsDerivation() (bool, error)

	// GetString reads a required string field; missing or type-mismatched
	// fields return an error (an EvalError per §7).
	GetString(field string) (string, error)

	// GetBool reads a required bool field.
	GetBool(field string) (bool, error)

	// GetListOfStrings reads a required []string field.
	GetListOfStrings(field string) ([]string, error)

	// MaybeGet returns the named field's cursor, or nil if absent.
	MaybeGet(field string) (Cursor, error)

	// Path returns the absolute attribute path to this node.
	Path() []string
}
