package quadsprite

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// NewSpriteImage uploads a decoded sprite into a new ebiten image. Sprite
// pixels are straight alpha; they are premultiplied on the way in.
func NewSpriteImage(s *Sprite) *ebiten.Image {
	img := ebiten.NewImage(s.Width, s.Height)
	img.WritePixels(premultiply(s.Pixels))
	return img
}

// premultiply returns a copy of straight-alpha RGBA pixels with color
// channels scaled by alpha.
func premultiply(pix []uint8) []uint8 {
	out := make([]uint8, len(pix))
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint16(pix[i+3])
		switch a {
		case 0xff:
			copy(out[i:i+4], pix[i:i+4])
		case 0:
			// fully transparent stays zero
		default:
			out[i] = uint8((uint16(pix[i])*a + 127) / 255)
			out[i+1] = uint8((uint16(pix[i+1])*a + 127) / 255)
			out[i+2] = uint8((uint16(pix[i+2])*a + 127) / 255)
			out[i+3] = uint8(a)
		}
	}
	return out
}

// ImageCache keeps one ebiten image per decoded sprite. Sprites returned by a
// Codec are shared between calls, so the sprite pointer is a stable key until
// the codec's caches are cleared.
type ImageCache struct {
	images map[*Sprite]*ebiten.Image
}

// NewImageCache returns an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[*Sprite]*ebiten.Image)}
}

// Image returns the image for s, uploading it on first use.
func (c *ImageCache) Image(s *Sprite) *ebiten.Image {
	if img, ok := c.images[s]; ok {
		return img
	}
	img := NewSpriteImage(s)
	c.images[s] = img
	return img
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return len(c.images)
}

// Clear deallocates and forgets every cached image. Call it together with
// Codec.ClearCaches.
func (c *ImageCache) Clear() {
	for s, img := range c.images {
		img.Deallocate()
		delete(c.images, s)
	}
}

// DrawThingFunc draws t onto a quadrant canvas. Translating world coordinates
// by (dx, dy) gives canvas coordinates.
type DrawThingFunc func(dst *ebiten.Image, t Thing, dx, dy float64)

// Canvas keeps an offscreen image per grid quadrant and redraws only the
// quadrants marked changed.
type Canvas struct {
	grid   *Grid
	groups []string
	draw   DrawThingFunc
	w, h   int
}

// NewCanvas returns a Canvas drawing the things of groups, in that order,
// with draw.
func NewCanvas(grid *Grid, groups []string, draw DrawThingFunc) *Canvas {
	return &Canvas{
		grid:   grid,
		groups: append([]string(nil), groups...),
		draw:   draw,
		w:      int(math.Ceil(grid.QuadrantWidth())),
		h:      int(math.Ceil(grid.QuadrantHeight())),
	}
}

// Refresh redraws every changed quadrant and clears its Changed flag. It
// returns the number of quadrants redrawn.
func (c *Canvas) Refresh() int {
	n := 0
	for _, q := range c.grid.arena {
		if !q.Changed {
			continue
		}
		if q.canvas == nil {
			q.canvas = ebiten.NewImage(c.w, c.h)
		} else {
			q.canvas.Clear()
		}
		for _, g := range c.groups {
			for _, t := range q.Things(g) {
				c.draw(q.canvas, t, -q.box.Left, -q.box.Top)
			}
		}
		q.Changed = false
		n++
	}
	return n
}

// DrawTo blits every quadrant canvas onto screen. (viewLeft, viewTop) is the
// world position of the screen's top-left corner.
func (c *Canvas) DrawTo(screen *ebiten.Image, viewLeft, viewTop float64) {
	var op ebiten.DrawImageOptions
	for _, q := range c.grid.arena {
		if q.canvas == nil {
			continue
		}
		op.GeoM.Reset()
		op.GeoM.Translate(q.box.Left-viewLeft, q.box.Top-viewTop)
		screen.DrawImage(q.canvas, &op)
	}
}

// QuadrantImage returns the canvas of q, or nil if it was never drawn.
func QuadrantImage(q *Quadrant) *ebiten.Image {
	return q.canvas
}
