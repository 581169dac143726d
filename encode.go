package quadsprite

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"
	"strings"
)

// Encode converts an image into a sprite string over the codec's palette.
// Each distinct color is mapped to its closest palette entry.
func (c *Codec) Encode(img image.Image) (string, error) {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return c.EncodePixels(nrgba.Pix)
}

// EncodePixels converts a straight-alpha RGBA buffer into a sprite string.
//
// The output starts with a p[...] header mapping a local palette, built from
// the buffer's own colors, onto the codec palette. Pixels follow as local
// digits; runs longer than max(3, round(4/digitSize)) are written as
// x<digit><count>,.
func (c *Codec) EncodePixels(pixels []uint8) (string, error) {
	if len(pixels)%4 != 0 {
		return "", fmt.Errorf("%w: %d bytes is not whole pixels", ErrBadDimensions, len(pixels))
	}
	local := GeneratePalette(pixels, true)
	index := make(map[RGBA]int, len(local))
	for i, col := range local {
		index[col] = i
	}
	// GeneratePalette leaves out transparent pixels. Those other than
	// {0,0,0,0} get their own entries so transparent palette members with
	// color channels survive.
	for i := 0; i < len(pixels); i += 4 {
		col := RGBA{pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]}
		if col[3] != 0 {
			continue
		}
		if _, ok := index[col]; !ok {
			index[col] = len(local)
			local = append(local, col)
		}
	}
	size := DigitSize(len(local))
	threshold := max(3, int(math.Round(4/float64(size))))

	var b strings.Builder
	b.WriteString("p[")
	for i, col := range local {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c.palette.Closest(col)))
	}
	b.WriteByte(']')

	flush := func(idx, count int) {
		digit := makeDigit(idx, size)
		if count > threshold {
			b.WriteByte('x')
			b.WriteString(digit)
			b.WriteString(strconv.Itoa(count))
			b.WriteByte(',')
			return
		}
		b.WriteString(strings.Repeat(digit, count))
	}

	cur, count := -1, 0
	for i := 0; i < len(pixels); i += 4 {
		idx := index[RGBA{pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]}]
		if idx == cur {
			count++
			continue
		}
		if count > 0 {
			flush(cur, count)
		}
		cur, count = idx, 1
	}
	if count > 0 {
		flush(cur, count)
	}
	return b.String(), nil
}
