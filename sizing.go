package quadsprite

import "fmt"

// repeatRowsStage repeats every row of a horizontally expanded buffer scale
// times. The row count comes from the buffer length and attrs.width. The
// output is always a fresh buffer so later stages may work in place.
func repeatRowsStage(c *Codec, data any, _ string, attrs sizeAttrs) (any, error) {
	pixels := data.([]uint8)
	rowBytes := attrs.width * 4
	if rowBytes <= 0 || len(pixels)%rowBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes into rows of %d pixels", ErrBadDimensions, len(pixels), attrs.width)
	}
	out := make([]uint8, 0, len(pixels)*c.scale)
	for start := 0; start < len(pixels); start += rowBytes {
		row := pixels[start : start+rowBytes]
		for range c.scale {
			out = append(out, row...)
		}
	}
	return out, nil
}

// flipStage mirrors the buffer horizontally, vertically, or both (which is a
// full reversal of the pixel order).
func flipStage(_ *Codec, data any, _ string, attrs sizeAttrs) (any, error) {
	pixels := data.([]uint8)
	switch {
	case attrs.flipH && attrs.flipV:
		reversePixels(pixels)
	case attrs.flipH:
		rowBytes := attrs.width * 4
		for start := 0; start < len(pixels); start += rowBytes {
			reversePixels(pixels[start : start+rowBytes])
		}
	case attrs.flipV:
		rowBytes := attrs.width * 4
		tmp := make([]uint8, rowBytes)
		for top, bottom := 0, len(pixels)-rowBytes; top < bottom; top, bottom = top+rowBytes, bottom-rowBytes {
			copy(tmp, pixels[top:top+rowBytes])
			copy(pixels[top:top+rowBytes], pixels[bottom:bottom+rowBytes])
			copy(pixels[bottom:bottom+rowBytes], tmp)
		}
	}
	return pixels, nil
}

// reversePixels reverses the order of the 4-byte pixels in p.
func reversePixels(p []uint8) {
	for i, j := 0, len(p)-4; i < j; i, j = i+4, j-4 {
		p[i], p[j] = p[j], p[i]
		p[i+1], p[j+1] = p[j+1], p[i+1]
		p[i+2], p[j+2] = p[j+2], p[i+2]
		p[i+3], p[j+3] = p[j+3], p[i+3]
	}
}
