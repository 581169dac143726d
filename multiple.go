package quadsprite

import (
	"fmt"
	"sort"
)

// MultipleDirection selects how the sections of a multiple sprite are laid
// out.
type MultipleDirection string

const (
	// MultipleVertical stacks top, middle and bottom sections.
	MultipleVertical MultipleDirection = "vertical"
	// MultipleHorizontal places left, middle and right sections side by side.
	MultipleHorizontal MultipleDirection = "horizontal"
	// MultipleCorners is a nine-slice layout: four corners, four edges and a
	// middle.
	MultipleCorners MultipleDirection = "corners"
)

// SpriteMultiple is a composite sprite sized for one entity. Section sprites
// and edge thicknesses are in output (scaled) pixels.
type SpriteMultiple struct {
	Direction MultipleDirection
	Sprites   map[string]*Sprite

	TopHeight, RightWidth, BottomHeight, LeftWidth int
	// MiddleStretch stretches the middle section instead of tiling it.
	MiddleStretch bool
}

// multipleSource is a decoded but unsized multiple sprite as held in a
// Codec's library. Thicknesses are unscaled.
type multipleSource struct {
	direction MultipleDirection
	sections  map[string][]uint8

	topHeight, rightWidth, bottomHeight, leftWidth int
	middleStretch                                  bool
}

// loadMultiple decodes each section of d through the load pipeline, keyed
// by the owning path and the section name.
func (c *Codec) loadMultiple(d MultipleDirective, where string, attrs Attributes) (*multipleSource, error) {
	m := &multipleSource{
		direction:     d.Direction,
		sections:      make(map[string][]uint8, len(d.Sections)),
		topHeight:     d.TopHeight,
		rightWidth:    d.RightWidth,
		bottomHeight:  d.BottomHeight,
		leftWidth:     d.LeftWidth,
		middleStretch: d.MiddleStretch,
	}
	names := make([]string, 0, len(d.Sections))
	for name := range d.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pixels, err := c.loadString(d.Sections[name], where+" "+name, attrs)
		if err != nil {
			return nil, err
		}
		m.sections[name] = pixels
	}
	return m, nil
}

func (m *multipleSource) declaredWidth(section string) int {
	switch section {
	case "left", "topLeft", "bottomLeft":
		return m.leftWidth
	case "right", "topRight", "bottomRight":
		return m.rightWidth
	}
	return 0
}

func (m *multipleSource) declaredHeight(section string) int {
	switch section {
	case "top", "topLeft", "topRight":
		return m.topHeight
	case "bottom", "bottomLeft", "bottomRight":
		return m.bottomHeight
	}
	return 0
}

// sectionWidth returns the unscaled width of a section whose buffer holds
// pixels pixels, already widened by scale. Declared edge widths win; a
// declared or entity row count is used next; the entity width is the
// fallback.
func (m *multipleSource) sectionWidth(section string, attrs Attributes, pixels, scale int) int {
	if w := m.declaredWidth(section); w > 0 {
		return w
	}
	if m.direction == MultipleVertical {
		return attrs.Width
	}
	rows := m.declaredHeight(section)
	if rows == 0 && m.direction == MultipleHorizontal {
		rows = attrs.Height
	}
	if rows > 0 && pixels%(rows*scale) == 0 && pixels/(rows*scale) > 0 {
		return pixels / (rows * scale)
	}
	return attrs.Width
}

// ComposeMultiple renders m into a single width by height sprite. Edge
// sections are tiled along their edge; the middle is tiled, or stretched with
// nearest-neighbor sampling when MiddleStretch is set. Fully transparent
// section pixels leave the destination untouched.
func ComposeMultiple(m *SpriteMultiple, width, height int) (*Sprite, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: compose %dx%d", ErrBadAttributes, width, height)
	}
	out := &Sprite{Pixels: make([]uint8, width*height*4), Width: width, Height: height}
	top, bottom := m.TopHeight, m.BottomHeight
	left, right := m.LeftWidth, m.RightWidth

	switch m.Direction {
	case MultipleVertical:
		left, right = 0, 0
		if top == 0 {
			top = spriteHeight(m.Sprites["top"])
		}
		if bottom == 0 {
			bottom = spriteHeight(m.Sprites["bottom"])
		}
		tile(out, m.Sprites["top"], 0, 0, width, top)
		tile(out, m.Sprites["bottom"], 0, height-bottom, width, bottom)
	case MultipleHorizontal:
		top, bottom = 0, 0
		if left == 0 {
			left = spriteWidth(m.Sprites["left"])
		}
		if right == 0 {
			right = spriteWidth(m.Sprites["right"])
		}
		tile(out, m.Sprites["left"], 0, 0, left, height)
		tile(out, m.Sprites["right"], width-right, 0, right, height)
	case MultipleCorners:
		tile(out, m.Sprites["top"], left, 0, width-left-right, top)
		tile(out, m.Sprites["bottom"], left, height-bottom, width-left-right, bottom)
		tile(out, m.Sprites["left"], 0, top, left, height-top-bottom)
		tile(out, m.Sprites["right"], width-right, top, right, height-top-bottom)
		tile(out, m.Sprites["topLeft"], 0, 0, left, top)
		tile(out, m.Sprites["topRight"], width-right, 0, right, top)
		tile(out, m.Sprites["bottomLeft"], 0, height-bottom, left, bottom)
		tile(out, m.Sprites["bottomRight"], width-right, height-bottom, right, bottom)
	default:
		return nil, fmt.Errorf("%w: unknown multiple direction %q", ErrBadDirective, m.Direction)
	}

	mx, my := left, top
	mw, mh := width-left-right, height-top-bottom
	if m.MiddleStretch {
		stretch(out, m.Sprites["middle"], mx, my, mw, mh)
	} else {
		tile(out, m.Sprites["middle"], mx, my, mw, mh)
	}
	return out, nil
}

func spriteWidth(s *Sprite) int {
	if s == nil {
		return 0
	}
	return s.Width
}

func spriteHeight(s *Sprite) int {
	if s == nil {
		return 0
	}
	return s.Height
}

// tile repeats src across the w by h area of dst at (x, y).
func tile(dst, src *Sprite, x, y, w, h int) {
	if src == nil || src.Width == 0 || src.Height == 0 {
		return
	}
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			blend(dst, x+dx, y+dy, src, dx%src.Width, dy%src.Height)
		}
	}
}

// stretch scales src over the w by h area of dst at (x, y).
func stretch(dst, src *Sprite, x, y, w, h int) {
	if src == nil || src.Width == 0 || src.Height == 0 {
		return
	}
	for dy := 0; dy < h; dy++ {
		sy := dy * src.Height / h
		for dx := 0; dx < w; dx++ {
			blend(dst, x+dx, y+dy, src, dx*src.Width/w, sy)
		}
	}
}

func blend(dst *Sprite, x, y int, src *Sprite, sx, sy int) {
	if x < 0 || y < 0 || x >= dst.Width || y >= dst.Height {
		return
	}
	si := (sy*src.Width + sx) * 4
	if src.Pixels[si+3] == 0 {
		return
	}
	di := (y*dst.Width + x) * 4
	copy(dst.Pixels[di:di+4], src.Pixels[si:si+4])
}
