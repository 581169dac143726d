// Package quadsprite decodes palette-encoded pixel art and keeps the things of
// a scrolling 2D world sorted into a grid of quadrants for drawing and
// collision detection, on top of [Ebitengine].
//
// # Sprites
//
// Sprites are stored as strings of palette digits. A [Library] holds them in
// a tree keyed by class names; a [Codec] decodes the whole library once,
// resolves "same", "filter" and "multiple" directives, and hands out sprites
// sized for an entity:
//
//	lib, _ := quadsprite.LoadLibrary(data)
//	codec, _ := quadsprite.NewCodec(quadsprite.CodecSettings{
//		Palette: quadsprite.DefaultPalette,
//		Library: lib,
//		Scale:   2,
//	})
//	sprite, _ := codec.DecodeSprite("player big flipped", quadsprite.Attributes{
//		Width: 16, Height: 32,
//	})
//	img := quadsprite.NewSpriteImage(sprite)
//
// Class names are looked up by [Lookup]: each space-separated token descends
// one level when it names a child, and "normal" children are followed when
// the tokens run out. Composite sprites come back as a [SpriteMultiple]; lay
// them out at any size with [ComposeMultiple].
//
// [Codec.Encode] goes the other way, turning an image into a sprite string
// with its own palette header.
//
// # Quadrants
//
// A [Grid] splits the viewport into a fixed number of quadrants. Shifting it
// slides the quadrants and recycles the trailing row or column onto the
// leading edge; [GridSettings.OnAdd] and [GridSettings.OnRemove] report each
// strip so the caller can spawn and despawn content. [Scroller] drives the
// shift from a view position, optionally tweened via [gween].
//
//	grid, _ := quadsprite.NewGrid(quadsprite.GridSettings{
//		NumRows: 4, NumCols: 6,
//		QuadrantWidth: 128, QuadrantHeight: 128,
//		GroupNames: []string{"solid", "character"},
//	})
//	grid.DetermineAllQuadrants("solid", solids)
//	grid.DetermineAllQuadrants("character", characters)
//
// Things implement [Thing] and embed a [Placement], which records the
// quadrants they overlap. [Canvas] keeps an offscreen image per quadrant and
// redraws only the ones marked changed.
//
// # Collisions
//
// A [Collider] builds per-type collision tables lazily from generator maps
// and scans each thing against the things sharing its quadrants:
//
//	collider := quadsprite.NewCollider(quadsprite.ColliderSettings{
//		HitCheckGenerators:    checks,
//		HitFunctionGenerators: hits,
//	})
//	for _, c := range characters {
//		collider.CheckHitsOf(c)
//	}
//
// The quadsprite/ecs module publishes collisions as [Donburi] events.
//
// Configuration files are read with [LoadSettings]; logging goes through a
// package-level logrus logger, see [SetLogger] and [SetDebug].
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package quadsprite
