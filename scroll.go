package quadsprite

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scrollAnim holds active scroll-to tweens for the view X and Y.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Scroller moves a viewport over the world and keeps a Grid in step with it.
// Scrolling the view by (dx, dy) shifts the grid by (-dx, -dy), so columns and
// rows stream in on the side the view moves toward.
type Scroller struct {
	// X and Y are the world position of the view's top-left corner.
	X, Y float64
	// OnScroll, if set, is called with every applied view delta so the
	// caller can move its things by the same (-dx, -dy).
	OnScroll func(dx, dy float64)

	grid *Grid
	anim *scrollAnim
}

// NewScroller returns a Scroller at the origin driving grid.
func NewScroller(grid *Grid) *Scroller {
	return &Scroller{grid: grid}
}

// ScrollBy moves the view immediately.
func (s *Scroller) ScrollBy(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	s.X += dx
	s.Y += dy
	s.grid.ShiftQuadrants(-dx, -dy)
	if s.OnScroll != nil {
		s.OnScroll(dx, dy)
	}
}

// ScrollTo animates the view to (x, y) over duration seconds. A nil easing
// function means linear.
func (s *Scroller) ScrollTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	s.anim = &scrollAnim{
		tweenX: gween.New(float32(s.X), float32(x), duration, easeFn),
		tweenY: gween.New(float32(s.Y), float32(y), duration, easeFn),
	}
}

// Scrolling reports whether a ScrollTo animation is in progress.
func (s *Scroller) Scrolling() bool {
	return s.anim != nil
}

// Stop cancels a running animation, leaving the view where it is.
func (s *Scroller) Stop() {
	s.anim = nil
}

// Update advances a running animation by dt seconds and applies the delta.
func (s *Scroller) Update(dt float32) {
	if s.anim == nil {
		return
	}
	x, y := s.X, s.Y
	if !s.anim.doneX {
		val, done := s.anim.tweenX.Update(dt)
		x = float64(val)
		s.anim.doneX = done
	}
	if !s.anim.doneY {
		val, done := s.anim.tweenY.Update(dt)
		y = float64(val)
		s.anim.doneY = done
	}
	if s.anim.doneX && s.anim.doneY {
		s.anim = nil
	}
	s.ScrollBy(x-s.X, y-s.Y)
}
