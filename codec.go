package quadsprite

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoPalette is returned when a Codec is built without colors.
	ErrNoPalette = errors.New("quadsprite: codec requires a non-empty palette")
	// ErrBadDirective is returned when a library directive cannot be resolved.
	ErrBadDirective = errors.New("quadsprite: unresolvable library directive")
	// ErrNoSprite is returned when a key matches nothing in the library.
	ErrNoSprite = errors.New("quadsprite: no sprite found")
	// ErrNotSprite is returned when a key resolves to something other than a
	// sprite or a sprite multiple.
	ErrNotSprite = errors.New("quadsprite: key does not resolve to a sprite")
	// ErrBadAttributes is returned for non-positive sprite dimensions.
	ErrBadAttributes = errors.New("quadsprite: invalid sprite attributes")
	// ErrBadDimensions is returned when a pixel buffer does not divide into
	// rows of the requested width.
	ErrBadDimensions = errors.New("quadsprite: pixel buffer does not match dimensions")
)

// Default codec settings.
const (
	DefaultFlipHoriz       = "flipped"
	DefaultFlipVert        = "flip-vert"
	DefaultNormal          = "normal"
	DefaultSizingCacheCost = 32 << 20
)

// Stage names of the load and sizing pipelines.
const (
	StageUnravel     = "unravel"
	StageFilter      = "filter"
	StageExpand      = "expand"
	StageMaterialize = "materialize"
	StageRepeatRows  = "repeat-rows"
	StageFlip        = "flip"
)

// CodecSettings configures a Codec.
type CodecSettings struct {
	// Palette is the default color table. Required.
	Palette Palette
	// Library holds encoded sprites and directives. It is not modified; the
	// codec keeps a decoded copy.
	Library *Library
	// Filters are referenced by name from filter directives.
	Filters map[string]Filter
	// Scale is the integer upscaling factor. Zero means 1.
	Scale int
	// FlipHoriz and FlipVert are the key substrings that request mirrored
	// output. Empty means the defaults.
	FlipHoriz string
	FlipVert  string
	// Normal is the lookup fallback class name. Empty means DefaultNormal.
	Normal string
	// SizingCacheCost bounds the bytes held by sized sprites. Zero means
	// DefaultSizingCacheCost.
	SizingCacheCost int64
}

// Attributes describe the entity a sprite is decoded for.
type Attributes struct {
	// Width and Height are the entity's size in unscaled sprite pixels.
	Width, Height int
	// Filter is applied between unraveling and expanding, if set.
	Filter *Filter
}

// Sprite is a decoded RGBA buffer, four bytes per pixel, row-major.
type Sprite struct {
	Pixels        []uint8
	Width, Height int
}

// At returns the color of the pixel at (x, y).
func (s *Sprite) At(x, y int) RGBA {
	i := (y*s.Width + x) * 4
	return RGBA{s.Pixels[i], s.Pixels[i+1], s.Pixels[i+2], s.Pixels[i+3]}
}

// Decoded is the result of Codec.Decode: exactly one field is set.
type Decoded struct {
	Sprite   *Sprite
	Multiple *SpriteMultiple
}

// IsMultiple reports whether the result is a composite sprite.
func (d Decoded) IsMultiple() bool {
	return d.Multiple != nil
}

// sizeAttrs parameterize the sizing pipeline.
type sizeAttrs struct {
	width        int // output pixels per row before row repetition
	flipH, flipV bool
}

// Codec decodes palette-encoded sprite strings into RGBA buffers, resolves
// library directives, sizes sprites for entities and encodes images back
// into sprite strings.
type Codec struct {
	palette    Palette
	digitSize  int
	defaultRef map[string]string
	scale      int
	flipHoriz  string
	flipVert   string
	filters    map[string]Filter

	library *Library
	lookup  *Lookup
	loader  *Pipeline[*Codec, Attributes]
	sizer   *Pipeline[*Codec, sizeAttrs]
	sized   *ristretto.Cache[string, Decoded]
}

// NewCodec validates the settings, decodes every sprite in the library and
// resolves its directives.
func NewCodec(settings CodecSettings) (*Codec, error) {
	if len(settings.Palette) == 0 {
		return nil, ErrNoPalette
	}
	if settings.Scale < 0 {
		return nil, fmt.Errorf("%w: scale %d", ErrBadAttributes, settings.Scale)
	}
	c := &Codec{
		palette:   append(Palette(nil), settings.Palette...),
		digitSize: settings.Palette.DigitSize(),
		scale:     settings.Scale,
		flipHoriz: settings.FlipHoriz,
		flipVert:  settings.FlipVert,
		filters:   settings.Filters,
	}
	if c.scale == 0 {
		c.scale = 1
	}
	if c.flipHoriz == "" {
		c.flipHoriz = DefaultFlipHoriz
	}
	if c.flipVert == "" {
		c.flipVert = DefaultFlipVert
	}
	normal := settings.Normal
	if normal == "" {
		normal = DefaultNormal
	}
	c.defaultRef = make(map[string]string, len(c.palette))
	for i := range c.palette {
		d := makeDigit(i, c.digitSize)
		c.defaultRef[d] = d
	}

	var err error
	c.loader, err = NewPipeline(c, PipelineSettings[*Codec, Attributes]{
		Stages: []string{StageUnravel, StageFilter, StageExpand, StageMaterialize},
		Transforms: map[string]Transform[*Codec, Attributes]{
			StageUnravel:     unravelStage,
			StageFilter:      filterStage,
			StageExpand:      expandStage,
			StageMaterialize: materializeStage,
		},
	})
	if err != nil {
		return nil, err
	}
	// Sized output depends on per-entity dimensions; it is cached in the
	// cost-bounded cache instead.
	c.sizer, err = NewPipeline(c, PipelineSettings[*Codec, sizeAttrs]{
		Stages: []string{StageRepeatRows, StageFlip},
		Transforms: map[string]Transform[*Codec, sizeAttrs]{
			StageRepeatRows: repeatRowsStage,
			StageFlip:       flipStage,
		},
		NoMakeCache: true,
		NoUseCache:  true,
	})
	if err != nil {
		return nil, err
	}

	raw := settings.Library
	if raw == nil {
		raw = NewLibrary()
	}
	if c.library, err = c.loadLibrary(raw); err != nil {
		return nil, err
	}
	if c.lookup, err = NewLookup(LookupSettings{Library: c.library, Normal: normal}); err != nil {
		return nil, err
	}

	maxCost := settings.SizingCacheCost
	if maxCost <= 0 {
		maxCost = DefaultSizingCacheCost
	}
	c.sized, err = ristretto.NewCache(&ristretto.Config[string, Decoded]{
		NumCounters:        1e5,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("quadsprite: sizing cache: %w", err)
	}
	c.logStats("load")
	return c, nil
}

// Palette returns a copy of the default palette.
func (c *Codec) Palette() Palette {
	return append(Palette(nil), c.palette...)
}

// DigitSize returns the digit width of the default palette.
func (c *Codec) DigitSize() int {
	return c.digitSize
}

// Scale returns the upscaling factor.
func (c *Codec) Scale() int {
	return c.scale
}

// Library returns the decoded library. Leaves are []uint8 buffers or
// multiple sources; it must not be modified.
func (c *Codec) Library() *Library {
	return c.library
}

// Lookup returns the class-name lookup over the decoded library.
func (c *Codec) Lookup() *Lookup {
	return c.lookup
}

// pendingDirective is a directive found during the first load pass.
type pendingDirective struct {
	path []string
}

// loadLibrary decodes every encoded string of raw into a mirrored library,
// then resolves directives in document order.
func (c *Codec) loadLibrary(raw *Library) (*Library, error) {
	var pending []pendingDirective
	out, err := c.loadNode(raw, nil, &pending)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		if _, err := c.resolveDirective(raw, out, p.path, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Codec) loadNode(raw *Library, path []string, pending *[]pendingDirective) (*Library, error) {
	out := NewLibrary()
	for _, name := range raw.names {
		p := append(append([]string(nil), path...), name)
		switch v := raw.children[name].(type) {
		case *Library:
			sub, err := c.loadNode(v, p, pending)
			if err != nil {
				return nil, err
			}
			out.Set(name, sub)
		case string:
			pixels, err := c.loadString(v, strings.Join(p, " "), Attributes{})
			if err != nil {
				return nil, err
			}
			out.Set(name, pixels)
		case SameDirective, FilterDirective, MultipleDirective:
			out.Set(name, v)
			*pending = append(*pending, pendingDirective{path: p})
		default:
			return nil, fmt.Errorf("%w: %q holds %T", ErrBadDirective, strings.Join(p, " "), v)
		}
	}
	return out, nil
}

// loadString runs one encoded string through the load pipeline.
func (c *Codec) loadString(encoded, key string, attrs Attributes) ([]uint8, error) {
	out, err := c.loader.Process(encoded, key, attrs)
	if err != nil {
		return nil, err
	}
	return out.([]uint8), nil
}

// resolveDirective replaces the directive at path in out with its decoded
// value and returns it. Directives referring to other directives are resolved
// first; seen guards against cycles.
func (c *Codec) resolveDirective(raw, out *Library, path []string, seen map[string]bool) (any, error) {
	where := strings.Join(path, " ")
	v, ok := out.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q not found", ErrBadDirective, where)
	}
	switch d := v.(type) {
	case SameDirective:
		if seen[where] {
			return nil, fmt.Errorf("%w: %q refers to itself", ErrBadDirective, where)
		}
		seen[where] = true
		target, err := c.resolveDirective(raw, out, d.Path, seen)
		if err != nil {
			return nil, fmt.Errorf("%w (from %q)", err, where)
		}
		setPath(out, path, target)
		return target, nil

	case FilterDirective:
		if seen[where] {
			return nil, fmt.Errorf("%w: %q refers to itself", ErrBadDirective, where)
		}
		seen[where] = true
		source, err := followSame(raw, d.Path)
		if err != nil {
			return nil, fmt.Errorf("%w (from %q)", err, where)
		}
		attrs := Attributes{}
		if f, ok := c.filters[d.Filter]; ok {
			attrs.Filter = &f
		} else {
			logger.WithFields(logrus.Fields{"sprite": where, "filter": d.Filter}).
				Warn("quadsprite: unknown filter, using unfiltered sprite")
		}
		var value any
		switch s := source.(type) {
		case string:
			value, err = c.loadString(s, where, attrs)
		case MultipleDirective:
			value, err = c.loadMultiple(s, where, attrs)
		default:
			err = fmt.Errorf("%w: filter target %q is %T", ErrBadDirective, strings.Join(d.Path, " "), source)
		}
		if err != nil {
			return nil, err
		}
		setPath(out, path, value)
		return value, nil

	case MultipleDirective:
		m, err := c.loadMultiple(d, where, Attributes{})
		if err != nil {
			return nil, err
		}
		setPath(out, path, m)
		return m, nil
	}
	// Already decoded.
	return v, nil
}

// followSame resolves a raw library path, following same directives.
func followSame(raw *Library, path []string) (any, error) {
	for hops := 0; hops <= 32; hops++ {
		v, ok := raw.Resolve(path)
		if !ok {
			return nil, fmt.Errorf("%w: %q not found", ErrBadDirective, strings.Join(path, " "))
		}
		same, isSame := v.(SameDirective)
		if !isSame {
			return v, nil
		}
		path = same.Path
	}
	return nil, fmt.Errorf("%w: same chain too long at %q", ErrBadDirective, strings.Join(path, " "))
}

// setPath stores v at path, which must already exist.
func setPath(lib *Library, path []string, v any) {
	parent, _ := lib.Resolve(path[:len(path)-1])
	parent.(*Library).Set(path[len(path)-1], v)
}

// Decode resolves key through the library and sizes the result for an entity
// of attrs.Width by attrs.Height unscaled pixels. Flip markers in key mirror
// the output.
func (c *Codec) Decode(key string, attrs Attributes) (Decoded, error) {
	if attrs.Width <= 0 {
		return Decoded{}, fmt.Errorf("%w: width %d for %q", ErrBadAttributes, attrs.Width, key)
	}
	v := c.lookup.Get(key)
	switch t := v.(type) {
	case []uint8:
		s, err := c.sizeSprite(key, t, attrs)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Sprite: s}, nil
	case *multipleSource:
		m, err := c.sizeMultiple(key, t, attrs)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Multiple: m}, nil
	case *Library:
		return Decoded{}, fmt.Errorf("%w: %q stops at a library node", ErrNoSprite, key)
	case nil:
		return Decoded{}, fmt.Errorf("%w: %q", ErrNoSprite, key)
	}
	return Decoded{}, fmt.Errorf("%w: %q resolves to %T", ErrNotSprite, key, v)
}

// DecodeSprite is Decode for callers expecting a single sprite.
func (c *Codec) DecodeSprite(key string, attrs Attributes) (*Sprite, error) {
	d, err := c.Decode(key, attrs)
	if err != nil {
		return nil, err
	}
	if d.Sprite == nil {
		return nil, fmt.Errorf("%w: %q is a multiple sprite", ErrNotSprite, key)
	}
	return d.Sprite, nil
}

// DecodeString decodes an encoded sprite string that is not part of the
// library. The result is sized for attrs without flipping.
func (c *Codec) DecodeString(encoded string, attrs Attributes) (*Sprite, error) {
	if attrs.Width <= 0 {
		return nil, fmt.Errorf("%w: width %d", ErrBadAttributes, attrs.Width)
	}
	// Library sprites are cached under their paths; strings get their own
	// namespace so a path never answers for an encoded string.
	key := "string|" + encoded
	if attrs.Filter != nil {
		key = "string|" + filterCacheKey(attrs.Filter) + encoded
	}
	pixels, err := c.loadString(encoded, key, attrs)
	if err != nil {
		return nil, err
	}
	out, err := c.sizer.Process(pixels, "string", sizeAttrs{width: attrs.Width * c.scale})
	if err != nil {
		return nil, err
	}
	return newSprite(out.([]uint8), attrs.Width*c.scale), nil
}

// filterCacheKey renders a filter deterministically for use in cache keys.
func filterCacheKey(f *Filter) string {
	keys := make([]string, 0, len(f.Substitutions))
	for k := range f.Substitutions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(f.Kind)
	for _, k := range keys {
		b.WriteString(" " + k + ":" + f.Substitutions[k])
	}
	b.WriteString("|")
	return b.String()
}

func newSprite(pixels []uint8, width int) *Sprite {
	return &Sprite{Pixels: pixels, Width: width, Height: len(pixels) / 4 / width}
}

// sizedKey identifies a sized result in the sizing cache.
func sizedKey(key string, attrs Attributes) string {
	return key + " " + strconv.Itoa(attrs.Width) + "x" + strconv.Itoa(attrs.Height)
}

func (c *Codec) flips(key string) (h, v bool) {
	return strings.Contains(key, c.flipHoriz), strings.Contains(key, c.flipVert)
}

func (c *Codec) sizeSprite(key string, pixels []uint8, attrs Attributes) (*Sprite, error) {
	ck := sizedKey(key, attrs)
	if d, ok := c.sized.Get(ck); ok && d.Sprite != nil {
		return d.Sprite, nil
	}
	flipH, flipV := c.flips(key)
	width := attrs.Width * c.scale
	out, err := c.sizer.Process(pixels, ck, sizeAttrs{width: width, flipH: flipH, flipV: flipV})
	if err != nil {
		return nil, err
	}
	s := newSprite(out.([]uint8), width)
	if attrs.Height > 0 && s.Height != attrs.Height*c.scale {
		logger.WithFields(logrus.Fields{"sprite": key, "height": attrs.Height, "rows": s.Height / c.scale}).
			Debug("quadsprite: sprite rows differ from entity height")
	}
	c.sized.Set(ck, Decoded{Sprite: s}, int64(len(s.Pixels)))
	c.sized.Wait()
	return s, nil
}

func (c *Codec) sizeMultiple(key string, src *multipleSource, attrs Attributes) (*SpriteMultiple, error) {
	ck := sizedKey(key, attrs)
	if d, ok := c.sized.Get(ck); ok && d.Multiple != nil {
		return d.Multiple, nil
	}
	flipH, flipV := c.flips(key)
	m := &SpriteMultiple{
		Direction:     src.direction,
		Sprites:       make(map[string]*Sprite, len(src.sections)),
		TopHeight:     src.topHeight * c.scale,
		RightWidth:    src.rightWidth * c.scale,
		BottomHeight:  src.bottomHeight * c.scale,
		LeftWidth:     src.leftWidth * c.scale,
		MiddleStretch: src.middleStretch,
	}
	var cost int64
	for name, pixels := range src.sections {
		width := src.sectionWidth(name, attrs, len(pixels)/4, c.scale) * c.scale
		out, err := c.sizer.Process(pixels, ck+" "+name, sizeAttrs{width: width, flipH: flipH, flipV: flipV})
		if err != nil {
			return nil, fmt.Errorf("quadsprite: %q section %q: %w", key, name, err)
		}
		s := newSprite(out.([]uint8), width)
		m.Sprites[name] = s
		cost += int64(len(s.Pixels))
	}
	c.sized.Set(ck, Decoded{Multiple: m}, cost)
	c.sized.Wait()
	return m, nil
}

// Stats reports the current cache sizes.
func (c *Codec) Stats() CacheStats {
	s := CacheStats{
		LookupEntries:   c.lookup.Len(),
		PipelineEntries: c.loader.Len(),
	}
	if m := c.sized.Metrics; m != nil {
		if added, evicted := m.KeysAdded(), m.KeysEvicted(); added > evicted {
			s.SizedEntries = added - evicted
		}
		if added, evicted := m.CostAdded(), m.CostEvicted(); added > evicted {
			s.SizedBytes = added - evicted
		}
	}
	return s
}

// ClearCaches empties the lookup, load pipeline and sizing caches. The decoded
// library itself is kept.
func (c *Codec) ClearCaches() {
	c.logStats("clear")
	c.lookup.ClearCache()
	c.loader.ClearCache()
	c.sized.Clear()
}

// Close releases the sizing cache. The codec must not be used afterwards.
func (c *Codec) Close() {
	c.sized.Close()
}
