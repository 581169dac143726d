package quadsprite

import (
	"slices"
	"strconv"
	"strings"
)

// DigitSize returns the number of characters used to write one palette index
// for a palette of n colors: floor(log10(n)) + 1.
func DigitSize(n int) int {
	size := 1
	for n >= 10 {
		n /= 10
		size++
	}
	return size
}

// makeDigit writes num left-padded with zeros to size characters.
func makeDigit(num, size int) string {
	s := strconv.Itoa(num)
	if len(s) >= size {
		return s
	}
	return strings.Repeat("0", size-len(s)) + s
}

// padDigit left-pads an already written digit group to size characters.
func padDigit(s string, size int) string {
	if len(s) >= size {
		return s
	}
	return strings.Repeat("0", size-len(s)) + s
}

// colorDistance is the summed absolute channel difference of two colors.
func colorDistance(a, b RGBA) int {
	d := 0
	for i := 0; i < 4; i++ {
		diff := int(a[i]) - int(b[i])
		if diff < 0 {
			diff = -diff
		}
		d += diff
	}
	return d
}

// Closest returns the index of the palette entry nearest to c. Ties go to the
// lowest index. Returns -1 for an empty palette.
func (p Palette) Closest(c RGBA) int {
	best, bestDist := -1, 0
	for i, entry := range p {
		d := colorDistance(entry, c)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

// DigitSize returns the digit size for the palette's length.
func (p Palette) DigitSize() int {
	return DigitSize(len(p))
}

// colorTree deduplicates RGBA tuples with one map level per channel.
type colorTree map[uint8]map[uint8]map[uint8]map[uint8]struct{}

// add records c and reports whether it was new.
func (t colorTree) add(c RGBA) bool {
	g, ok := t[c[0]]
	if !ok {
		g = make(map[uint8]map[uint8]map[uint8]struct{})
		t[c[0]] = g
	}
	b, ok := g[c[1]]
	if !ok {
		b = make(map[uint8]map[uint8]struct{})
		g[c[1]] = b
	}
	a, ok := b[c[2]]
	if !ok {
		a = make(map[uint8]struct{})
		b[c[2]] = a
	}
	if _, ok := a[c[3]]; ok {
		return false
	}
	a[c[3]] = struct{}{}
	return true
}

// GeneratePalette builds a palette from the distinct colors of an RGBA pixel
// buffer. Grays (R == G == B) come first in ascending order, then other
// colors in descending R, G, B, A order. Pixels with alpha zero are not
// collected; instead a single {0,0,0,0} entry is prepended when any pixel is
// fully transparent, or when forceZero is set.
func GeneratePalette(pixels []uint8, forceZero bool) Palette {
	tree := make(colorTree)
	var grays, colors Palette

	for i := 0; i+3 < len(pixels); i += 4 {
		c := RGBA{pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]}
		if c[3] == 0 {
			forceZero = true
			continue
		}
		if !tree.add(c) {
			continue
		}
		if c[0] == c[1] && c[1] == c[2] {
			grays = append(grays, c)
		} else {
			colors = append(colors, c)
		}
	}

	slices.SortStableFunc(grays, func(a, b RGBA) int {
		return int(a[0]) - int(b[0])
	})
	slices.SortFunc(colors, func(a, b RGBA) int {
		for ch := 0; ch < 4; ch++ {
			if a[ch] != b[ch] {
				return int(b[ch]) - int(a[ch])
			}
		}
		return 0
	})

	out := make(Palette, 0, len(grays)+len(colors)+1)
	if forceZero {
		out = append(out, RGBA{0, 0, 0, 0})
	}
	out = append(out, grays...)
	out = append(out, colors...)
	return out
}
