package quadsprite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadLibrary is returned when library or filter JSON cannot be parsed.
var ErrBadLibrary = errors.New("quadsprite: malformed sprite library")

// Library is a nested mapping from class names to sprites. Children keep
// their insertion order so walks and validation are deterministic.
//
// Before a Codec loads it, leaves are encoded sprite strings or directives
// (SameDirective, FilterDirective, MultipleDirective). In a Codec's decoded
// copy, leaves are pixel buffers ([]uint8) or unsized multiple sprites.
type Library struct {
	names    []string
	children map[string]any
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{children: make(map[string]any)}
}

// Set stores v under name, keeping the original position if name exists.
func (l *Library) Set(name string, v any) {
	if _, ok := l.children[name]; !ok {
		l.names = append(l.names, name)
	}
	l.children[name] = v
}

// Sub returns the child library under name, creating it if needed.
// It panics if name holds a leaf.
func (l *Library) Sub(name string) *Library {
	if v, ok := l.children[name]; ok {
		sub, isLib := v.(*Library)
		if !isLib {
			panic(fmt.Sprintf("quadsprite: library child %q is a leaf", name))
		}
		return sub
	}
	sub := NewLibrary()
	l.Set(name, sub)
	return sub
}

// Child returns the value stored directly under name.
func (l *Library) Child(name string) (any, bool) {
	v, ok := l.children[name]
	return v, ok
}

// Names returns child names in insertion order.
func (l *Library) Names() []string {
	return append([]string(nil), l.names...)
}

// Len returns the number of direct children.
func (l *Library) Len() int {
	return len(l.names)
}

// Resolve follows path from l and returns the value found there.
func (l *Library) Resolve(path []string) (any, bool) {
	var cur any = l
	for _, name := range path {
		lib, ok := cur.(*Library)
		if !ok {
			return nil, false
		}
		if cur, ok = lib.children[name]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Walk calls fn for every leaf in depth-first insertion order. The path slice
// is reused between calls.
func (l *Library) Walk(fn func(path []string, v any) error) error {
	return l.walk(nil, fn)
}

func (l *Library) walk(path []string, fn func(path []string, v any) error) error {
	for _, name := range l.names {
		p := append(path, name)
		if sub, ok := l.children[name].(*Library); ok {
			if err := sub.walk(p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, l.children[name]); err != nil {
			return err
		}
	}
	return nil
}

// SameDirective makes a library entry reuse the sprite stored at Path.
type SameDirective struct {
	Path []string
}

// FilterDirective makes a library entry a filtered copy of the raw sprite
// stored at Path.
type FilterDirective struct {
	Path   []string
	Filter string
}

// MultipleDirective describes a composite sprite built from named sections.
type MultipleDirective struct {
	Direction MultipleDirection
	// Sections maps a section name (top, middle, topLeft, ...) to its encoded
	// sprite string.
	Sections map[string]string
	// Thicknesses holds topheight, rightwidth, bottomheight and leftwidth in
	// unscaled sprite pixels.
	TopHeight, RightWidth, BottomHeight, LeftWidth int
	MiddleStretch                                  bool
}

// Filter is a post-processing directive applied to unraveled sprite digits.
type Filter struct {
	// Kind selects the filter. Only "palette" is understood; other kinds
	// are logged and skipped.
	Kind string
	// Substitutions maps palette digits to their replacements.
	Substitutions map[string]string
}

// LoadLibrary parses nested JSON objects into a Library, keeping the key order
// of the document. Leaves are encoded sprite strings or directive arrays:
//
//	["same", ["Path", "To"]]
//	["filter", ["Path", "To"], "filterName"]
//	["multiple", "vertical", {"top": "...", "topheight": 2}]
func LoadLibrary(jsonData []byte) (*Library, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLibrary, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: top level must be an object", ErrBadLibrary)
	}
	lib, err := parseLibraryObject(dec, nil)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after library", ErrBadLibrary)
	}
	return lib, nil
}

// parseLibraryObject reads object members until the closing brace. The
// opening brace has already been consumed.
func parseLibraryObject(dec *json.Decoder, path []string) (*Library, error) {
	lib := NewLibrary()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLibrary, err)
		}
		name := tok.(string) // object keys are always strings
		p := append(append([]string(nil), path...), name)

		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadLibrary, strings.Join(p, "."), err)
		}
		switch v := tok.(type) {
		case string:
			lib.Set(name, v)
		case json.Delim:
			switch v {
			case '{':
				sub, err := parseLibraryObject(dec, p)
				if err != nil {
					return nil, err
				}
				lib.Set(name, sub)
			case '[':
				d, err := parseDirective(dec, p)
				if err != nil {
					return nil, err
				}
				lib.Set(name, d)
			default:
				return nil, fmt.Errorf("%w: %s: unexpected %v", ErrBadLibrary, strings.Join(p, "."), v)
			}
		default:
			return nil, fmt.Errorf("%w: %s: unsupported value %v", ErrBadLibrary, strings.Join(p, "."), v)
		}
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, fmt.Errorf("%w: %v", ErrBadLibrary, err)
	}
	return lib, nil
}

// parseDirective reads a directive array. The opening bracket has already
// been consumed.
func parseDirective(dec *json.Decoder, path []string) (any, error) {
	var parts []json.RawMessage
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadLibrary, strings.Join(path, "."), err)
		}
		parts = append(parts, raw)
	}
	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, fmt.Errorf("%w: %v", ErrBadLibrary, err)
	}
	where := strings.Join(path, ".")
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s: empty directive", ErrBadLibrary, where)
	}
	var kind string
	if err := json.Unmarshal(parts[0], &kind); err != nil {
		return nil, fmt.Errorf("%w: %s: directive name: %v", ErrBadLibrary, where, err)
	}

	switch kind {
	case "same":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %s: same takes one path", ErrBadLibrary, where)
		}
		p, err := parsePath(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadLibrary, where, err)
		}
		return SameDirective{Path: p}, nil

	case "filter":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: %s: filter takes a path and a filter name", ErrBadLibrary, where)
		}
		p, err := parsePath(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadLibrary, where, err)
		}
		var name string
		if err := json.Unmarshal(parts[2], &name); err != nil {
			return nil, fmt.Errorf("%w: %s: filter name: %v", ErrBadLibrary, where, err)
		}
		return FilterDirective{Path: p, Filter: name}, nil

	case "multiple":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: %s: multiple takes a direction and sections", ErrBadLibrary, where)
		}
		var dir string
		if err := json.Unmarshal(parts[1], &dir); err != nil {
			return nil, fmt.Errorf("%w: %s: direction: %v", ErrBadLibrary, where, err)
		}
		md, err := parseMultipleSections(MultipleDirection(dir), parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadLibrary, where, err)
		}
		return md, nil
	}
	return nil, fmt.Errorf("%w: %s: unknown directive %q", ErrBadLibrary, where, kind)
}

func parsePath(raw json.RawMessage) ([]string, error) {
	var path []string
	if err := json.Unmarshal(raw, &path); err == nil {
		return path, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("path must be a string or list of strings")
	}
	return strings.Fields(s), nil
}

func parseMultipleSections(dir MultipleDirection, raw json.RawMessage) (MultipleDirective, error) {
	md := MultipleDirective{Direction: dir, Sections: make(map[string]string)}
	switch dir {
	case MultipleVertical, MultipleHorizontal, MultipleCorners:
	default:
		return md, fmt.Errorf("unknown direction %q", dir)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return md, err
	}
	for name, v := range fields {
		var err error
		switch name {
		case "topheight":
			err = json.Unmarshal(v, &md.TopHeight)
		case "rightwidth":
			err = json.Unmarshal(v, &md.RightWidth)
		case "bottomheight":
			err = json.Unmarshal(v, &md.BottomHeight)
		case "leftwidth":
			err = json.Unmarshal(v, &md.LeftWidth)
		case "middleStretch":
			err = json.Unmarshal(v, &md.MiddleStretch)
		default:
			var s string
			err = json.Unmarshal(v, &s)
			md.Sections[name] = s
		}
		if err != nil {
			return md, fmt.Errorf("section %q: %v", name, err)
		}
	}
	return md, nil
}

// LoadFilters parses filter definitions of the form
//
//	{"name": ["palette", {"00": "01", "02": "03"}]}
func LoadFilters(jsonData []byte) (map[string]Filter, error) {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, fmt.Errorf("%w: filters: %v", ErrBadLibrary, err)
	}
	filters := make(map[string]Filter, len(raw))
	for name, parts := range raw {
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: filter %q needs a kind and a mapping", ErrBadLibrary, name)
		}
		var f Filter
		if err := json.Unmarshal(parts[0], &f.Kind); err != nil {
			return nil, fmt.Errorf("%w: filter %q kind: %v", ErrBadLibrary, name, err)
		}
		if err := json.Unmarshal(parts[1], &f.Substitutions); err != nil {
			return nil, fmt.Errorf("%w: filter %q mapping: %v", ErrBadLibrary, name, err)
		}
		filters[name] = f
	}
	return filters, nil
}
