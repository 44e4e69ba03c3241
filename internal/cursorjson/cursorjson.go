// Package cursorjson adapts a plain JSON document into a cursor.Cursor
// (§4.2), for driving a scrape against a pre-dumped attribute tree
// instead of a live Nix evaluator. A derivation is any JSON object
// carrying `"type": "derivation"`; any other object is an attrset whose
// keys (besides `type`) are iterated in sorted order, since JSON object
// key order is not preserved by encoding/json.
package cursorjson

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/flox/pkgdb-sub000/internal/cursor"
)

// Load parses data as a JSON document and returns its root Cursor.
func Load(data []byte) (cursor.Cursor, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("cursorjson: parsing document: %w", err)
	}
	return &jsonCursor{value: v}, nil
}

type jsonCursor struct {
	value interface{}
	path  []string
}

var _ cursor.Cursor = (*jsonCursor)(nil)

func (c *jsonCursor) object() (map[string]interface{}, bool) {
	m, ok := c.value.(map[string]interface{})
	return m, ok
}

func (c *jsonCursor) child(name string, v interface{}) *jsonCursor {
	p := make([]string, len(c.path)+1)
	copy(p, c.path)
	p[len(c.path)] = name
	return &jsonCursor{value: v, path: p}
}

func (c *jsonCursor) Path() []string { return c.path }

func (c *jsonCursor) MaybeChild(name string) (cursor.Cursor, error) {
	obj, ok := c.object()
	if !ok {
		return nil, nil
	}
	v, ok := obj[name]
	if !ok {
		return nil, nil
	}
	return c.child(name, v), nil
}

func (c *jsonCursor) MaybeGet(field string) (cursor.Cursor, error) {
	return c.MaybeChild(field)
}

func (c *jsonCursor) Children(yield func(name string, child cursor.Cursor) error) error {
	obj, ok := c.object()
	if !ok {
		return nil
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		if name == "type" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := yield(name, c.child(name, obj[name])); err != nil {
			return err
		}
	}
	return nil
}

func (c *jsonCursor) IsDerivation() (bool, error) {
	obj, ok := c.object()
	if !ok {
		return false, nil
	}
	t, _ := obj["type"].(string)
	return t == "derivation", nil
}

func (c *jsonCursor) GetString(field string) (string, error) {
	child, err := c.MaybeChild(field)
	if err != nil {
		return "", err
	}
	if child == nil {
		return "", fmt.Errorf("cursorjson: missing string field %q at %v", field, c.path)
	}
	s, ok := child.(*jsonCursor).value.(string)
	if !ok {
		return "", fmt.Errorf("cursorjson: field %q at %v is not a string", field, c.path)
	}
	return s, nil
}

func (c *jsonCursor) GetBool(field string) (bool, error) {
	child, err := c.MaybeChild(field)
	if err != nil {
		return false, err
	}
	if child == nil {
		return false, fmt.Errorf("cursorjson: missing bool field %q at %v", field, c.path)
	}
	b, ok := child.(*jsonCursor).value.(bool)
	if !ok {
		return false, fmt.Errorf("cursorjson: field %q at %v is not a bool", field, c.path)
	}
	return b, nil
}

func (c *jsonCursor) GetListOfStrings(field string) ([]string, error) {
	child, err := c.MaybeChild(field)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("cursorjson: missing list field %q at %v", field, c.path)
	}
	raw, ok := child.(*jsonCursor).value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("cursorjson: field %q at %v is not a list", field, c.path)
	}
	out := make([]string, len(raw))
	for i, elem := range raw {
		s, ok := elem.(string)
		if !ok {
			return nil, fmt.Errorf("cursorjson: field %q at %v has a non-string element", field, c.path)
		}
		out[i] = s
	}
	return out, nil
}
