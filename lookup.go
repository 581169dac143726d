package quadsprite

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingNormal is returned when RequireNormal is set and a
// library node has no normal child.
var ErrMissingNormal = errors.New("quadsprite: library node lacks normal key")

// LookupSettings configures a Lookup.
type LookupSettings struct {
	// Library is the nested mapping searched by Get. Required.
	Library *Library
	// Normal is the fallback child name used when no query token matches
	// at a level. Empty disables the fallback.
	Normal string
	// RequireNormal makes construction fail when any library node, the root
	// included, lacks the Normal child.
	RequireNormal bool
	// Prefix is stripped from the start of raw keys before tokenizing.
	Prefix string
}

// Lookup resolves whitespace-separated class names against a nested Library
// to the most specific stored value. Results are cached by both the raw and
// the processed key until cleared. The two caches are kept apart since a raw
// key may spell another key's processed form.
type Lookup struct {
	library   *Library
	normal    string
	prefix    string
	raw       map[string]any
	processed map[string]any
}

// NewLookup validates the settings and returns a Lookup.
func NewLookup(settings LookupSettings) (*Lookup, error) {
	if settings.Library == nil {
		return nil, errors.New("quadsprite: lookup requires a library")
	}
	if settings.RequireNormal {
		if settings.Normal == "" {
			return nil, errors.New("quadsprite: RequireNormal set without a Normal key")
		}
		if path, found := findLackingNormal(settings.Library, settings.Normal, nil); found {
			where := strings.Join(path, " ")
			if where == "" {
				where = "root"
			}
			return nil, fmt.Errorf("%w: %q at %q", ErrMissingNormal, settings.Normal, where)
		}
	}
	return &Lookup{
		library: settings.Library,
		normal:  settings.Normal,
		prefix:  settings.Prefix,
		raw:       make(map[string]any),
		processed: make(map[string]any),
	}, nil
}

// findLackingNormal returns the path of the first node, depth-first, without
// a normal child.
func findLackingNormal(lib *Library, normal string, path []string) ([]string, bool) {
	if _, ok := lib.Child(normal); !ok {
		return path, true
	}
	for _, name := range lib.names {
		sub, ok := lib.children[name].(*Library)
		if !ok {
			continue
		}
		p := append(append([]string{}, path...), name)
		if found, ok := findLackingNormal(sub, normal, p); ok {
			return found, true
		}
	}
	return nil, false
}

// Get returns the value the key resolves to. It is a leaf when the tokens
// lead to one, otherwise the deepest *Library reached.
//
// At each level the remaining tokens are scanned in query order and the first
// one naming a child is consumed. If none matches, the normal child is
// followed without consuming a token. The walk ends at a leaf or at a node
// with neither a matching token nor a normal child.
func (l *Lookup) Get(rawKey string) any {
	if v, ok := l.raw[rawKey]; ok {
		return v
	}
	tokens := l.tokens(rawKey)
	key := strings.Join(tokens, " ")
	if v, ok := l.processed[key]; ok {
		l.raw[rawKey] = v
		return v
	}
	v := l.follow(tokens, l.library)
	l.processed[key] = v
	l.raw[rawKey] = v
	return v
}

// tokens strips the prefix and drops normal tokens from a raw key.
func (l *Lookup) tokens(rawKey string) []string {
	if l.prefix != "" {
		rawKey = strings.TrimPrefix(rawKey, l.prefix)
	}
	fields := strings.Fields(rawKey)
	if l.normal == "" {
		return fields
	}
	out := fields[:0]
	for _, f := range fields {
		if f != l.normal {
			out = append(out, f)
		}
	}
	return out
}

func (l *Lookup) follow(tokens []string, node any) any {
	for {
		lib, ok := node.(*Library)
		if !ok {
			return node
		}
		matched := false
		for i, tok := range tokens {
			if child, ok := lib.Child(tok); ok {
				tokens = append(tokens[:i:i], tokens[i+1:]...)
				node = child
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if l.normal != "" {
			if child, ok := lib.Child(l.normal); ok {
				node = child
				continue
			}
		}
		return node
	}
}

// Len returns the number of cached raw and processed keys.
func (l *Lookup) Len() int {
	return len(l.raw) + len(l.processed)
}

// ClearCached forgets the result cached for rawKey and its processed form.
func (l *Lookup) ClearCached(rawKey string) {
	delete(l.raw, rawKey)
	delete(l.processed, strings.Join(l.tokens(rawKey), " "))
}

// ClearCache forgets every cached result.
func (l *Lookup) ClearCache() {
	clear(l.raw)
	clear(l.processed)
}
