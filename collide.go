package quadsprite

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoHitCheck is returned by CheckHit when no hit test is registered for
// the requested type and group.
var ErrNoHitCheck = errors.New("quadsprite: no hit check registered")

// GlobalCheck gates all collision testing for a thing. Returning false skips
// the thing, both as the scanner and as a scanned partner.
type GlobalCheck func(t Thing) bool

// HitCheck tests whether a collides with b.
type HitCheck func(a, b Thing) bool

// HitFunc responds to a collision of a with b.
type HitFunc func(a, b Thing)

// ColliderSettings supplies the generators a Collider builds its tables from.
// Each generator runs at most once per cached table.
type ColliderSettings struct {
	// GlobalCheckGenerators are keyed by group.
	GlobalCheckGenerators map[string]func() GlobalCheck
	// HitCheckGenerators and HitFunctionGenerators are keyed by the
	// scanning thing's group, then by the other thing's group.
	HitCheckGenerators    map[string]map[string]func() HitCheck
	HitFunctionGenerators map[string]map[string]func() HitFunc
	// DedupePairs tests each partner at most once per CheckHitsOf call, even
	// when the two things share several quadrants.
	DedupePairs bool
}

// hitTable is the cached collision table of one thing type.
type hitTable struct {
	typeName string
	group    string
	gate     GlobalCheck
	others   []string // groups with a hit check, sorted
	checks   map[string]HitCheck
	funcs    map[string]HitFunc
}

// Collider drives per-frame collision scans over the quadrants things were
// registered in by a Grid. Things must be comparable, which pointer types
// are.
type Collider struct {
	settings ColliderSettings
	gates    map[string]GlobalCheck
	tables   map[string]*hitTable
	seen     map[Thing]struct{}
}

// NewCollider returns a Collider with empty caches.
func NewCollider(settings ColliderSettings) *Collider {
	return &Collider{
		settings: settings,
		gates:    make(map[string]GlobalCheck),
		tables:   make(map[string]*hitTable),
		seen:     make(map[Thing]struct{}),
	}
}

// CacheHitCheckGroup builds the global check for group if it has not been
// built yet. Groups without a generator cache a nil check.
func (c *Collider) CacheHitCheckGroup(group string) GlobalCheck {
	if gate, ok := c.gates[group]; ok {
		return gate
	}
	var gate GlobalCheck
	if gen := c.settings.GlobalCheckGenerators[group]; gen != nil {
		gate = gen()
	}
	c.gates[group] = gate
	return gate
}

// CacheHitCheckType builds the collision table for typeName, whose things
// belong to group, if it has not been built yet.
func (c *Collider) CacheHitCheckType(typeName, group string) {
	c.table(typeName, group)
}

func (c *Collider) table(typeName, group string) *hitTable {
	if t, ok := c.tables[typeName]; ok {
		return t
	}
	t := &hitTable{
		typeName: typeName,
		group:    group,
		gate:     c.CacheHitCheckGroup(group),
		checks:   make(map[string]HitCheck),
		funcs:    make(map[string]HitFunc),
	}
	for other, gen := range c.settings.HitCheckGenerators[group] {
		if gen == nil {
			continue
		}
		t.checks[other] = gen()
		t.others = append(t.others, other)
	}
	sort.Strings(t.others)
	for other, gen := range c.settings.HitFunctionGenerators[group] {
		if gen != nil {
			t.funcs[other] = gen()
		}
	}
	c.tables[typeName] = t
	return t
}

// CheckHitsOf tests t against every thing sharing one of its quadrants and
// calls the hit function for each collision found.
func (c *Collider) CheckHitsOf(t Thing) {
	c.scan(c.table(t.TypeName(), t.Group()), t)
}

// HitsCheck returns the scan for things of typeName in group, with its table
// resolved up front.
func (c *Collider) HitsCheck(typeName, group string) func(Thing) {
	tbl := c.table(typeName, group)
	return func(t Thing) {
		c.scan(tbl, t)
	}
}

func (c *Collider) scan(tbl *hitTable, t Thing) {
	if tbl.gate != nil && !tbl.gate(t) {
		return
	}
	if c.settings.DedupePairs {
		clear(c.seen)
	}
	for _, q := range t.Placement().Quadrants() {
		for _, other := range tbl.others {
			check, hit := tbl.checks[other], tbl.funcs[other]
			gate := c.CacheHitCheckGroup(other)
			for _, o := range q.Things(other) {
				// Things later in the list see this pair from their own scan.
				if o == t {
					break
				}
				if gate != nil && !gate(o) {
					continue
				}
				if c.settings.DedupePairs {
					if _, done := c.seen[o]; done {
						continue
					}
					c.seen[o] = struct{}{}
				}
				if check(t, o) && hit != nil {
					hit(t, o)
				}
			}
		}
	}
}

// CheckHit tests a against b directly, calling the hit function on a
// collision. It returns ErrNoHitCheck when typeA has no check for groupB.
func (c *Collider) CheckHit(a, b Thing, typeA, groupB string) (bool, error) {
	tbl := c.table(typeA, a.Group())
	check, ok := tbl.checks[groupB]
	if !ok {
		return false, fmt.Errorf("%w: %q against %q", ErrNoHitCheck, typeA, groupB)
	}
	if !check(a, b) {
		return false, nil
	}
	if hit := tbl.funcs[groupB]; hit != nil {
		hit(a, b)
	}
	return true, nil
}

// ClearCache forgets every built table and global check.
func (c *Collider) ClearCache() {
	clear(c.gates)
	clear(c.tables)
}
