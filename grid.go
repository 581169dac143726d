package quadsprite

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

var (
	// ErrGridTooSmall is returned for grids with fewer than one row or column.
	ErrGridTooSmall = errors.New("quadsprite: grid needs at least one row and one column")
	// ErrBadQuadrantSize is returned for non-positive quadrant dimensions.
	ErrBadQuadrantSize = errors.New("quadsprite: quadrant dimensions must be positive")
)

// EdgeFunc is notified when the grid gains or loses a row or column. The box
// is the area of the row or column.
type EdgeFunc func(dir Direction, top, right, bottom, left float64)

// GridSettings configures a Grid.
type GridSettings struct {
	NumRows, NumCols              int
	QuadrantWidth, QuadrantHeight float64
	// StartLeft and StartTop position the grid on reset.
	StartLeft, StartTop float64
	// GroupNames are the thing groups each quadrant tracks. Things of other
	// groups are still registered.
	GroupNames []string
	// OnAdd is called for every row or column streamed in, and once for the
	// whole grid on reset. OnRemove is called for every row or column evicted.
	OnAdd    EdgeFunc
	OnRemove EdgeFunc
}

// Grid partitions a scrollable viewport into NumRows by NumCols quadrants.
// Shifting the grid slides its quadrants; once the accumulated offset passes
// a quadrant size, the trailing row or column is recycled onto the leading
// edge. Row and column counts never change.
//
// Quadrants live in an arena addressed through ring offsets, so recycling a
// column is a pointer bump plus a reset of that column's quadrants. The grid
// origin is the only stored position; every quadrant box is derived from it
// and the quadrant's logical (row, col), so neighbors share exact edges.
type Grid struct {
	numRows, numCols int
	qw, qh           float64
	startLeft        float64
	startTop         float64
	groups           []string
	onAdd, onRemove  EdgeFunc

	arena              []*Quadrant
	rowStart, colStart int
	left, top          float64
	offsetX, offsetY   float64
}

// NewGrid validates the settings and returns a grid laid out by
// ResetQuadrants.
func NewGrid(settings GridSettings) (*Grid, error) {
	if settings.NumRows < 1 || settings.NumCols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGridTooSmall, settings.NumRows, settings.NumCols)
	}
	if settings.QuadrantWidth <= 0 || settings.QuadrantHeight <= 0 {
		return nil, fmt.Errorf("%w: %gx%g", ErrBadQuadrantSize, settings.QuadrantWidth, settings.QuadrantHeight)
	}
	g := &Grid{
		numRows:   settings.NumRows,
		numCols:   settings.NumCols,
		qw:        settings.QuadrantWidth,
		qh:        settings.QuadrantHeight,
		startLeft: settings.StartLeft,
		startTop:  settings.StartTop,
		groups:    append([]string(nil), settings.GroupNames...),
		onAdd:     settings.OnAdd,
		onRemove:  settings.OnRemove,
	}
	g.ResetQuadrants()
	return g, nil
}

// slot maps a logical (row, col) to its arena index.
func (g *Grid) slot(row, col int) int {
	return ((g.rowStart+row)%g.numRows)*g.numCols + (g.colStart+col)%g.numCols
}

// quadBox returns the bounds logical (row, col) has in the current layout.
// Edges are computed the same way as box's, so adjacent quadrants and the
// grid bounds agree to the bit.
func (g *Grid) quadBox(row, col int) Box {
	return Box{
		Top:    g.top + float64(row)*g.qh,
		Right:  g.left + float64(col+1)*g.qw,
		Bottom: g.top + float64(row+1)*g.qh,
		Left:   g.left + float64(col)*g.qw,
	}
}

func (g *Grid) box() Box {
	return Box{
		Top:    g.top,
		Right:  g.left + float64(g.numCols)*g.qw,
		Bottom: g.top + float64(g.numRows)*g.qh,
		Left:   g.left,
	}
}

// layout moves every quadrant to the box of its logical position.
func (g *Grid) layout() {
	for row := 0; row < g.numRows; row++ {
		for col := 0; col < g.numCols; col++ {
			q := g.arena[g.slot(row, col)]
			q.box = g.quadBox(row, col)
			q.Changed = true
		}
	}
}

// ResetQuadrants lays the grid out again from the start position, emptying
// every quadrant and clearing the offsets. OnAdd fires once with DirXInc for
// the whole area.
func (g *Grid) ResetQuadrants() {
	g.rowStart, g.colStart = 0, 0
	g.offsetX, g.offsetY = 0, 0
	g.left, g.top = g.startLeft, g.startTop
	if g.arena == nil {
		g.arena = make([]*Quadrant, g.numRows*g.numCols)
	}
	for row := 0; row < g.numRows; row++ {
		for col := 0; col < g.numCols; col++ {
			i := g.slot(row, col)
			if g.arena[i] == nil {
				g.arena[i] = newQuadrant(g.quadBox(row, col), g.groups)
				continue
			}
			g.arena[i].reset(g.quadBox(row, col))
		}
	}
	g.fire(g.onAdd, "reset", DirXInc, g.box())
}

// ShiftQuadrants moves the grid by (dx, dy), accumulates the offset,
// rebalances rows and columns and lays every quadrant out again.
func (g *Grid) ShiftQuadrants(dx, dy float64) {
	g.left += dx
	g.top += dy
	g.offsetX += dx
	g.offsetY += dy
	g.AdjustOffsets()
}

// AdjustOffsets recycles rows and columns until both offsets are within one
// quadrant size, then lays every quadrant out at its logical position.
//
// A positive X offset pops the right column (OnRemove DirXInc) and unshifts a
// fresh left one (OnAdd DirXDec); a negative one shifts out the left column
// (OnRemove DirXDec) and pushes a right one (OnAdd DirXInc). Rows mirror this
// with DirYInc for the bottom edge and DirYDec for the top.
func (g *Grid) AdjustOffsets() {
	for g.offsetX > g.qw {
		g.recycleCol(true)
		g.offsetX -= g.qw
	}
	for g.offsetX < -g.qw {
		g.recycleCol(false)
		g.offsetX += g.qw
	}
	for g.offsetY > g.qh {
		g.recycleRow(true)
		g.offsetY -= g.qh
	}
	for g.offsetY < -g.qh {
		g.recycleRow(false)
		g.offsetY += g.qh
	}
	g.layout()
}

func (g *Grid) colBox(col int) Box {
	return g.quadBox(0, col).Union(g.quadBox(g.numRows-1, col))
}

func (g *Grid) rowBox(row int) Box {
	return g.quadBox(row, 0).Union(g.quadBox(row, g.numCols-1))
}

// recycleCol moves the right column to the left edge when toLeft is set,
// otherwise the left column to the right edge.
func (g *Grid) recycleCol(toLeft bool) {
	n := g.numCols
	if toLeft {
		g.fire(g.onRemove, "pop", DirXInc, g.colBox(n-1))
		g.colStart = (g.colStart + n - 1) % n
		g.left -= g.qw
		g.resetCol(0)
		g.fire(g.onAdd, "unshift", DirXDec, g.colBox(0))
		return
	}
	g.fire(g.onRemove, "shift", DirXDec, g.colBox(0))
	g.colStart = (g.colStart + 1) % n
	g.left += g.qw
	g.resetCol(n - 1)
	g.fire(g.onAdd, "push", DirXInc, g.colBox(n-1))
}

// recycleRow moves the bottom row to the top edge when toTop is set,
// otherwise the top row to the bottom edge.
func (g *Grid) recycleRow(toTop bool) {
	n := g.numRows
	if toTop {
		g.fire(g.onRemove, "pop", DirYInc, g.rowBox(n-1))
		g.rowStart = (g.rowStart + n - 1) % n
		g.top -= g.qh
		g.resetRow(0)
		g.fire(g.onAdd, "unshift", DirYDec, g.rowBox(0))
		return
	}
	g.fire(g.onRemove, "shift", DirYDec, g.rowBox(0))
	g.rowStart = (g.rowStart + 1) % n
	g.top += g.qh
	g.resetRow(n - 1)
	g.fire(g.onAdd, "push", DirYInc, g.rowBox(n-1))
}

func (g *Grid) resetCol(col int) {
	for row := 0; row < g.numRows; row++ {
		g.arena[g.slot(row, col)].reset(g.quadBox(row, col))
	}
}

func (g *Grid) resetRow(row int) {
	for col := 0; col < g.numCols; col++ {
		g.arena[g.slot(row, col)].reset(g.quadBox(row, col))
	}
}

func (g *Grid) fire(fn EdgeFunc, op string, dir Direction, b Box) {
	debugRebalance(op, dir, b)
	if fn != nil {
		fn(dir, b.Top, b.Right, b.Bottom, b.Left)
	}
}

// DetermineAllQuadrants empties group in every quadrant, then registers each
// thing.
func (g *Grid) DetermineAllQuadrants(group string, things []Thing) {
	for _, q := range g.arena {
		q.clearGroup(group)
	}
	for _, t := range things {
		g.DetermineThingQuadrants(t)
	}
}

// DetermineThingQuadrants registers t in every quadrant its box overlaps and
// records them in its Placement. Boxes outside the grid are clamped to the
// nearest edge quadrants. If the thing changed, both the quadrants it leaves
// and the ones it enters are marked changed.
func (g *Grid) DetermineThingQuadrants(t Thing) {
	p := t.Placement()
	b := t.Box()
	rowStart, rowEnd, rowOut := span(b.Top, b.Bottom, g.top, g.qh, g.numRows)
	colStart, colEnd, colOut := span(b.Left, b.Right, g.left, g.qw, g.numCols)
	if rowOut || colOut {
		logger.WithFields(logrus.Fields{"type": t.TypeName(), "group": t.Group()}).
			Warn("quadsprite: thing outside grid, clamped to edge quadrants")
	}

	changed := p.Changed
	if changed {
		for _, q := range p.quadrants {
			q.Changed = true
		}
	}
	p.reset()

	group := t.Group()
	for row := rowStart; row <= rowEnd; row++ {
		for col := colStart; col <= colEnd; col++ {
			q := g.arena[g.slot(row, col)]
			q.add(group, t)
			p.quadrants = append(p.quadrants, q)
			if changed {
				q.Changed = true
			}
		}
	}
	if p.MaxQuads > 0 && len(p.quadrants) > p.MaxQuads {
		logger.WithFields(logrus.Fields{"type": t.TypeName(), "quads": len(p.quadrants), "max": p.MaxQuads}).
			Warn("quadsprite: thing spans more quadrants than MaxQuads")
	}
	p.Changed = false
}

// span returns the inclusive index range covering [lo, hi] for cells of the
// given size starting at origin, clamped to [0, n-1]. out reports whether the
// range lay entirely outside the grid.
func span(lo, hi, origin, size float64, n int) (start, end int, out bool) {
	start = int(math.Floor((lo - origin) / size))
	end = int(math.Floor((hi - origin) / size))
	out = end < 0 || start > n-1
	return clampIndex(start, n), clampIndex(end, n), out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Quadrant returns the quadrant at logical (row, col), counted from the top
// left of the current layout. It returns nil when out of range.
func (g *Grid) Quadrant(row, col int) *Quadrant {
	if row < 0 || row >= g.numRows || col < 0 || col >= g.numCols {
		return nil
	}
	return g.arena[g.slot(row, col)]
}

// Quadrants returns every quadrant in row-major logical order.
func (g *Grid) Quadrants() []*Quadrant {
	out := make([]*Quadrant, 0, len(g.arena))
	for row := 0; row < g.numRows; row++ {
		for col := 0; col < g.numCols; col++ {
			out = append(out, g.arena[g.slot(row, col)])
		}
	}
	return out
}

// NumRows returns the row count.
func (g *Grid) NumRows() int { return g.numRows }

// NumCols returns the column count.
func (g *Grid) NumCols() int { return g.numCols }

// Box returns the grid's bounds, the union of all quadrant boxes.
func (g *Grid) Box() Box { return g.box() }

// Offset returns the shift accumulated since the last rebalance.
func (g *Grid) Offset() (x, y float64) { return g.offsetX, g.offsetY }

// QuadrantWidth returns the width of one quadrant.
func (g *Grid) QuadrantWidth() float64 { return g.qw }

// QuadrantHeight returns the height of one quadrant.
func (g *Grid) QuadrantHeight() float64 { return g.qh }
