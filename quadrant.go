package quadsprite

import "github.com/hajimehoshi/ebiten/v2"

// Quadrant is one fixed-size cell of a Grid. It lists, per group, the things
// whose boxes overlapped it during the last registration pass.
type Quadrant struct {
	// Changed is set when a registered thing changed or the quadrant moved.
	// Canvas.Refresh clears it after redrawing.
	Changed bool

	box    Box
	things map[string][]Thing
	canvas *ebiten.Image // created lazily by Canvas
}

func newQuadrant(box Box, groups []string) *Quadrant {
	q := &Quadrant{box: box, things: make(map[string][]Thing, len(groups)), Changed: true}
	for _, g := range groups {
		q.things[g] = nil
	}
	return q
}

// Box returns the quadrant's current bounds in world pixels.
func (q *Quadrant) Box() Box {
	return q.box
}

// Things returns the things registered in group. The slice is reused between
// registration passes and must not be retained.
func (q *Quadrant) Things(group string) []Thing {
	return q.things[group]
}

// NumThings returns the number of things registered in group.
func (q *Quadrant) NumThings(group string) int {
	return len(q.things[group])
}

func (q *Quadrant) add(group string, t Thing) {
	q.things[group] = append(q.things[group], t)
}

func (q *Quadrant) clearGroup(group string) {
	list := q.things[group]
	clear(list)
	q.things[group] = list[:0]
}

// reset empties every group and moves the quadrant to box.
func (q *Quadrant) reset(box Box) {
	for g := range q.things {
		q.clearGroup(g)
	}
	q.box = box
	q.Changed = true
}
