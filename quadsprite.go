package quadsprite

// RGBA is a palette color with 8-bit channels. Not premultiplied.
// Premultiplication happens only when a sprite is uploaded to an image.
type RGBA [4]uint8

// Palette is an ordered color table. A color's position is the digit used for
// it in encoded sprite strings.
type Palette []RGBA

// Box is an axis-aligned rectangle in world pixels. The origin is the top-left
// with Y increasing downward, so Top <= Bottom and Left <= Right.
type Box struct {
	Top, Right, Bottom, Left float64
}

// Width returns Right - Left.
func (b Box) Width() float64 { return b.Right - b.Left }

// Height returns Bottom - Top.
func (b Box) Height() float64 { return b.Bottom - b.Top }

// Translate returns b moved by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{Top: b.Top + dy, Right: b.Right + dx, Bottom: b.Bottom + dy, Left: b.Left + dx}
}

// Contains reports whether the point (x, y) lies inside the box.
// Points on the edge are considered inside.
func (b Box) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

// Intersects reports whether b and other overlap.
// Boxes sharing only an edge are not considered intersecting.
func (b Box) Intersects(other Box) bool {
	return b.Left < other.Right && b.Right > other.Left &&
		b.Top < other.Bottom && b.Bottom > other.Top
}

// Union returns the smallest box containing both b and other.
func (b Box) Union(other Box) Box {
	return Box{
		Top:    min(b.Top, other.Top),
		Right:  max(b.Right, other.Right),
		Bottom: max(b.Bottom, other.Bottom),
		Left:   min(b.Left, other.Left),
	}
}

// Direction names the grid edge a row or column was added to or removed from.
type Direction uint8

const (
	DirXInc Direction = iota // right edge
	DirXDec                  // left edge
	DirYInc                  // bottom edge
	DirYDec                  // top edge
)

// String returns the short direction name used in logs.
func (d Direction) String() string {
	switch d {
	case DirXInc:
		return "xInc"
	case DirXDec:
		return "xDec"
	case DirYInc:
		return "yInc"
	case DirYDec:
		return "yDec"
	default:
		return "unknown"
	}
}

// Thing is an entity owned by the game-object system. The grid reads its box
// and group and writes its Placement; the collider reads its type name.
type Thing interface {
	// TypeName identifies the collision table used for this thing.
	TypeName() string
	// Group is the quadrant group the thing is registered under.
	Group() string
	// Box is the thing's current bounding box in world pixels.
	Box() Box
	// Placement returns the thing's quadrant bookkeeping. Must be non-nil
	// and stable for the thing's lifetime.
	Placement() *Placement
}

// defaultMaxQuads is the quadrant capacity preallocated for a Placement.
const defaultMaxQuads = 4

// Placement records which quadrants a Thing currently overlaps. Embed it in a
// game object and return its address from Thing.Placement.
type Placement struct {
	// Changed marks the thing as moved or redrawn since the last
	// registration pass. The grid clears it after registering.
	Changed bool
	// MaxQuads is the capacity preallocated for the quadrant list.
	// Zero means defaultMaxQuads. Things spanning more quadrants still get
	// every quadrant, and the grid logs a warning when MaxQuads is set.
	MaxQuads int

	quadrants []*Quadrant
}

// Quadrants returns the quadrants the thing was assigned to by the last
// registration pass. The slice is reused between passes.
func (p *Placement) Quadrants() []*Quadrant {
	return p.quadrants
}

// NumQuads returns the number of quadrants the thing occupies.
func (p *Placement) NumQuads() int {
	return len(p.quadrants)
}

func (p *Placement) reset() {
	if p.quadrants == nil {
		n := p.MaxQuads
		if n <= 0 {
			n = defaultMaxQuads
		}
		p.quadrants = make([]*Quadrant, 0, n)
		return
	}
	clear(p.quadrants)
	p.quadrants = p.quadrants[:0]
}
