package quadsprite

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus"
)

type testThing struct {
	name  string
	group string
	box   Box
	place Placement
}

func (t *testThing) TypeName() string      { return t.name }
func (t *testThing) Group() string         { return t.group }
func (t *testThing) Box() Box              { return t.box }
func (t *testThing) Placement() *Placement { return &t.place }

func newThing(name, group string, left, top, w, h float64) *testThing {
	return &testThing{name: name, group: group, box: Box{Top: top, Right: left + w, Bottom: top + h, Left: left}}
}

type edgeEvent struct {
	dir Direction
	box Box
}

type edgeLog struct {
	added, removed []edgeEvent
}

func (l *edgeLog) settings(s GridSettings) GridSettings {
	s.OnAdd = func(dir Direction, top, right, bottom, left float64) {
		l.added = append(l.added, edgeEvent{dir, Box{top, right, bottom, left}})
	}
	s.OnRemove = func(dir Direction, top, right, bottom, left float64) {
		l.removed = append(l.removed, edgeEvent{dir, Box{top, right, bottom, left}})
	}
	return s
}

func newTestGrid(t testing.TB, log *edgeLog) *Grid {
	t.Helper()
	s := GridSettings{
		NumRows: 3, NumCols: 3,
		QuadrantWidth: 100, QuadrantHeight: 100,
		GroupNames: []string{"solid", "character"},
	}
	if log != nil {
		s = log.settings(s)
	}
	g, err := NewGrid(s)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func checkGridInvariant(t *testing.T, g *Grid) {
	t.Helper()
	qs := g.Quadrants()
	if len(qs) != g.NumRows()*g.NumCols() {
		t.Fatalf("len(Quadrants) = %d, want %d", len(qs), g.NumRows()*g.NumCols())
	}
	union := qs[0].Box()
	seen := make(map[*Quadrant]bool, len(qs))
	for _, q := range qs {
		if seen[q] {
			t.Fatalf("quadrant listed twice")
		}
		seen[q] = true
		union = union.Union(q.Box())
	}
	if union != g.Box() {
		t.Errorf("union of quadrants = %+v, grid box = %+v", union, g.Box())
	}
	for row := 0; row < g.NumRows(); row++ {
		for col := 0; col < g.NumCols(); col++ {
			b := g.Quadrant(row, col).Box()
			wantLeft := g.Box().Left + float64(col)*g.QuadrantWidth()
			wantTop := g.Box().Top + float64(row)*g.QuadrantHeight()
			if b.Left != wantLeft || b.Top != wantTop {
				t.Errorf("Quadrant(%d, %d) at (%v, %v), want (%v, %v)", row, col, b.Left, b.Top, wantLeft, wantTop)
			}
		}
	}
}

func TestNewGrid_Errors(t *testing.T) {
	if _, err := NewGrid(GridSettings{NumRows: 0, NumCols: 3, QuadrantWidth: 1, QuadrantHeight: 1}); !errors.Is(err, ErrGridTooSmall) {
		t.Errorf("zero rows err = %v, want ErrGridTooSmall", err)
	}
	if _, err := NewGrid(GridSettings{NumRows: 1, NumCols: 1, QuadrantWidth: 0, QuadrantHeight: 1}); !errors.Is(err, ErrBadQuadrantSize) {
		t.Errorf("zero width err = %v, want ErrBadQuadrantSize", err)
	}
}

func TestGrid_Reset(t *testing.T) {
	log := &edgeLog{}
	g := newTestGrid(t, log)
	want := Box{Top: 0, Right: 300, Bottom: 300, Left: 0}
	if g.Box() != want {
		t.Errorf("Box = %+v, want %+v", g.Box(), want)
	}
	if len(log.added) != 1 || log.added[0] != (edgeEvent{DirXInc, want}) {
		t.Errorf("OnAdd calls = %+v, want one xInc for the whole grid", log.added)
	}
	checkGridInvariant(t, g)
}

func TestGrid_ShiftOneColumn(t *testing.T) {
	log := &edgeLog{}
	g := newTestGrid(t, log)
	log.added = nil

	g.ShiftQuadrants(150, 0)

	if len(log.removed) != 1 || len(log.added) != 1 {
		t.Fatalf("removed %d, added %d, want one each", len(log.removed), len(log.added))
	}
	// The grid slid 150 right, then its right column moved to the left edge.
	if got := log.removed[0]; got != (edgeEvent{DirXInc, Box{Top: 0, Right: 450, Bottom: 300, Left: 350}}) {
		t.Errorf("removed = %+v", got)
	}
	if got := log.added[0]; got != (edgeEvent{DirXDec, Box{Top: 0, Right: 150, Bottom: 300, Left: 50}}) {
		t.Errorf("added = %+v", got)
	}
	if g.Box().Left != 50 || g.Box().Right != 350 {
		t.Errorf("Box = %+v, want left 50, right 350", g.Box())
	}
	if x, y := g.Offset(); x != 50 || y != 0 {
		t.Errorf("Offset = (%v, %v), want (50, 0)", x, y)
	}
	checkGridInvariant(t, g)
}

func TestGrid_ShiftDirections(t *testing.T) {
	tests := []struct {
		name           string
		dx, dy         float64
		removed, added Direction
	}{
		{"left", -150, 0, DirXDec, DirXInc},
		{"down", 0, 150, DirYInc, DirYDec},
		{"up", 0, -150, DirYDec, DirYInc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &edgeLog{}
			g := newTestGrid(t, log)
			log.added = nil
			g.ShiftQuadrants(tt.dx, tt.dy)
			if len(log.removed) != 1 || log.removed[0].dir != tt.removed {
				t.Errorf("removed = %+v, want one %v", log.removed, tt.removed)
			}
			if len(log.added) != 1 || log.added[0].dir != tt.added {
				t.Errorf("added = %+v, want one %v", log.added, tt.added)
			}
			checkGridInvariant(t, g)
		})
	}
}

func TestGrid_SmallShiftKeepsQuadrants(t *testing.T) {
	log := &edgeLog{}
	g := newTestGrid(t, log)
	log.added = nil
	g.ShiftQuadrants(40, -60)
	g.ShiftQuadrants(60, 0) // exactly one width: not past it
	if len(log.added) != 0 || len(log.removed) != 0 {
		t.Errorf("callbacks fired for shifts within one quadrant: %+v %+v", log.added, log.removed)
	}
	if g.Box().Left != 100 || g.Box().Top != -60 {
		t.Errorf("Box = %+v, want left 100, top -60", g.Box())
	}
	checkGridInvariant(t, g)
}

func TestGrid_InvariantRandomShifts(t *testing.T) {
	g := newTestGrid(t, nil)
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		g.ShiftQuadrants(float64(rng.IntN(701)-350), float64(rng.IntN(701)-350))
		x, y := g.Offset()
		if x > g.QuadrantWidth() || x < -g.QuadrantWidth() || y > g.QuadrantHeight() || y < -g.QuadrantHeight() {
			t.Fatalf("offset (%v, %v) not rebalanced", x, y)
		}
	}
	checkGridInvariant(t, g)
}

func TestGrid_InvariantFractionalShifts(t *testing.T) {
	g := newTestGrid(t, nil)
	for i := 0; i < 5000; i++ {
		g.ShiftQuadrants(0.1, 0.07)
	}
	checkGridInvariant(t, g)
	for i := 0; i < 5000; i++ {
		g.ShiftQuadrants(-0.13, -0.03)
	}
	checkGridInvariant(t, g)

	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 500; i++ {
		g.ShiftQuadrants(rng.Float64()*300-150, rng.Float64()*300-150)
	}
	checkGridInvariant(t, g)

	// Neighbors share their edges exactly.
	for row := 0; row < g.NumRows(); row++ {
		for col := 1; col < g.NumCols(); col++ {
			if l, r := g.Quadrant(row, col-1).Box().Right, g.Quadrant(row, col).Box().Left; l != r {
				t.Errorf("row %d: quadrant %d ends at %v, next starts at %v", row, col-1, l, r)
			}
		}
	}
}

func TestGrid_RecycledQuadrantsAreEmptied(t *testing.T) {
	g := newTestGrid(t, nil)
	thing := newThing("block", "solid", 210, 10, 20, 20) // right column
	g.DetermineAllQuadrants("solid", []Thing{thing})
	right := g.Quadrant(0, 2)
	if right.NumThings("solid") != 1 {
		t.Fatalf("NumThings = %d, want 1", right.NumThings("solid"))
	}
	right.Changed = false

	g.ShiftQuadrants(150, 0)
	if g.Quadrant(0, 0) != right {
		t.Fatal("right column was not recycled to the left edge")
	}
	if right.NumThings("solid") != 0 || !right.Changed {
		t.Errorf("recycled quadrant: things %d, changed %v; want 0, true", right.NumThings("solid"), right.Changed)
	}
}

func TestGrid_Membership(t *testing.T) {
	g := newTestGrid(t, nil)
	tests := []struct {
		name  string
		thing *testThing
		want  int
	}{
		{"inside one", newThing("a", "solid", 10, 10, 50, 50), 1},
		{"spans two horizontally", newThing("b", "solid", 80, 10, 40, 50), 2},
		{"spans four", newThing("c", "solid", 80, 80, 40, 40), 4},
		{"outside right", newThing("d", "solid", 900, 10, 10, 10), 1},
		{"outside above left", newThing("e", "solid", -500, -500, 10, 10), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.DetermineThingQuadrants(tt.thing)
			if got := tt.thing.place.NumQuads(); got != tt.want {
				t.Errorf("NumQuads = %d, want %d", got, tt.want)
			}
			for _, q := range tt.thing.place.Quadrants() {
				found := false
				for _, other := range q.Things("solid") {
					if other == Thing(tt.thing) {
						found = true
					}
				}
				if !found {
					t.Error("thing missing from a quadrant it was assigned")
				}
			}
		})
	}
}

func TestGrid_ClampedEdges(t *testing.T) {
	g := newTestGrid(t, nil)
	far := newThing("far", "solid", 900, 10, 10, 10)
	g.DetermineThingQuadrants(far)
	if far.place.Quadrants()[0] != g.Quadrant(0, 2) {
		t.Error("thing right of the grid should land in the right column")
	}
	wide := newThing("wide", "solid", -50, 150, 500, 10)
	g.DetermineThingQuadrants(wide)
	if wide.place.NumQuads() != 3 {
		t.Errorf("wide NumQuads = %d, want 3", wide.place.NumQuads())
	}
}

func TestGrid_OutsideWarns(t *testing.T) {
	hook := captureLogs(t)
	g := newTestGrid(t, nil)
	g.DetermineThingQuadrants(newThing("a", "solid", 10, 10, 10, 10))
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("warned for a thing inside the grid")
	}
	g.DetermineThingQuadrants(newThing("a", "solid", 10, 900, 10, 10))
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Errorf("no warning for a thing below the grid")
	}
}

func TestGrid_DetermineAllResetsGroup(t *testing.T) {
	g := newTestGrid(t, nil)
	a := newThing("a", "solid", 10, 10, 10, 10)
	b := newThing("b", "solid", 20, 20, 10, 10)
	p := newThing("p", "character", 30, 30, 10, 10)

	g.DetermineAllQuadrants("solid", []Thing{a, b})
	g.DetermineAllQuadrants("character", []Thing{p})
	g.DetermineAllQuadrants("solid", []Thing{a})

	q := g.Quadrant(0, 0)
	if q.NumThings("solid") != 1 || q.Things("solid")[0] != Thing(a) {
		t.Errorf("solid = %v, want only a", q.Things("solid"))
	}
	if q.NumThings("character") != 1 {
		t.Errorf("character count = %d, want 1", q.NumThings("character"))
	}
}

func TestGrid_ChangedPropagation(t *testing.T) {
	g := newTestGrid(t, nil)
	for _, q := range g.Quadrants() {
		q.Changed = false
	}
	th := newThing("a", "solid", 10, 10, 10, 10)
	g.DetermineThingQuadrants(th)
	if g.Quadrant(0, 0).Changed {
		t.Error("unchanged thing marked its quadrant changed")
	}

	th.box = th.box.Translate(100, 0)
	th.place.Changed = true
	g.DetermineThingQuadrants(th)
	if !g.Quadrant(0, 0).Changed || !g.Quadrant(0, 1).Changed {
		t.Error("moving thing should mark old and new quadrants changed")
	}
	if g.Quadrant(1, 1).Changed {
		t.Error("unrelated quadrant marked changed")
	}
	if th.place.Changed {
		t.Error("Placement.Changed not cleared after registration")
	}
}

func TestPlacement_MaxQuadsWarns(t *testing.T) {
	hook := captureLogs(t)
	g := newTestGrid(t, nil)
	th := newThing("big", "solid", 10, 10, 250, 250)
	th.place.MaxQuads = 2
	g.DetermineThingQuadrants(th)
	if th.place.NumQuads() != 9 {
		t.Errorf("NumQuads = %d, want 9", th.place.NumQuads())
	}
	if hook.LastEntry() == nil {
		t.Error("no warning when exceeding MaxQuads")
	}
}
