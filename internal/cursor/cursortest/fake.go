// Package cursortest provides an in-memory cursor.Cursor implementation
// for tests, standing in for the host evaluator (§4.2). It mirrors
// golang-dep's preference for small, hand-built fixtures (bestiary_test.go)
// over a mock-generation framework.
//
// A Node is simultaneously an attrset (Attrs, for traversal) and,
// optionally, a scalar leaf (StrVal/BoolVal/ListVal) — exactly as a real
// Nix AttrCursor can be asked either to enumerate children or to read
// itself as a string/bool/list.
package cursortest

import (
	"fmt"
	"sort"

	"github.com/flox/pkgdb-sub000/internal/cursor"
)

type Node struct {
	Derivation bool
	StrVal     *string
	BoolVal    *bool
	ListVal    []string

	Attrs      map[string]*Node
	ChildOrder []string // declared order; defaults to sorted Attrs keys

	// EvalErrorOn names fields that throw when evaluated; "" makes
	// IsDerivation on the node itself throw.
	EvalErrorOn map[string]bool
}

func Str(v string) *Node  { return &Node{StrVal: &v} }
func Bool(v bool) *Node   { return &Node{BoolVal: &v} }
func List(v ...string) *Node { return &Node{ListVal: v} }

func Drv(attrs map[string]*Node) *Node {
	return &Node{Derivation: true, Attrs: attrs}
}

func AttrSet(attrs map[string]*Node, order ...string) *Node {
	return &Node{Attrs: attrs, ChildOrder: order}
}

// Cursor adapts a *Node into a cursor.Cursor, tracking its path from root.
type Cursor struct {
	node *Node
	path []string
}

func Root(node *Node) cursor.Cursor {
	return &Cursor{node: node, path: nil}
}

var _ cursor.Cursor = (*Cursor)(nil)

func (c *Cursor) child(name string, n *Node) *Cursor {
	p := make([]string, len(c.path)+1)
	copy(p, c.path)
	p[len(c.path)] = name
	return &Cursor{node: n, path: p}
}

func (c *Cursor) errOn(field string) error {
	if c.node.EvalErrorOn[field] {
		return fmt.Errorf("cursortest: eval error on %q at %v", field, c.path)
	}
	return nil
}

func (c *Cursor) MaybeChild(name string) (cursor.Cursor, error) {
	if err := c.errOn(name); err != nil {
		return nil, err
	}
	n, ok := c.node.Attrs[name]
	if !ok {
		return nil, nil
	}
	return c.child(name, n), nil
}

func (c *Cursor) MaybeGet(field string) (cursor.Cursor, error) {
	return c.MaybeChild(field)
}

func (c *Cursor) Children(yield func(name string, child cursor.Cursor) error) error {
	order := c.node.ChildOrder
	if order == nil {
		order = make([]string, 0, len(c.node.Attrs))
		for name := range c.node.Attrs {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	for _, name := range order {
		n, ok := c.node.Attrs[name]
		if !ok {
			continue
		}
		if c.node.EvalErrorOn[name] {
			if err := yield(name, nil); err != nil {
				return err
			}
			continue
		}
		if err := yield(name, c.child(name, n)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cursor) IsDerivation() (bool, error) {
	if err := c.errOn(""); err != nil {
		return false, err
	}
	return c.node.Derivation, nil
}

func (c *Cursor) GetString(field string) (string, error) {
	child, err := c.MaybeChild(field)
	if err != nil {
		return "", err
	}
	if child == nil {
		return "", fmt.Errorf("cursortest: missing string field %q at %v", field, c.path)
	}
	cc := child.(*Cursor)
	if cc.node.StrVal == nil {
		return "", fmt.Errorf("cursortest: field %q at %v is not a string", field, c.path)
	}
	return *cc.node.StrVal, nil
}

func (c *Cursor) GetBool(field string) (bool, error) {
	child, err := c.MaybeChild(field)
	if err != nil {
		return false, err
	}
	if child == nil {
		return false, fmt.Errorf("cursortest: missing bool field %q at %v", field, c.path)
	}
	cc := child.(*Cursor)
	if cc.node.BoolVal == nil {
		return false, fmt.Errorf("cursortest: field %q at %v is not a bool", field, c.path)
	}
	return *cc.node.BoolVal, nil
}

func (c *Cursor) GetListOfStrings(field string) ([]string, error) {
	child, err := c.MaybeChild(field)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("cursortest: missing list field %q at %v", field, c.path)
	}
	cc := child.(*Cursor)
	if cc.node.ListVal == nil {
		return nil, fmt.Errorf("cursortest: field %q at %v is not a list", field, c.path)
	}
	return cc.node.ListVal, nil
}

func (c *Cursor) Path() []string {
	return c.path
}
