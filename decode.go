package quadsprite

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBadDigit is returned when an encoded sprite references a color the
	// active mapping does not have.
	ErrBadDigit = errors.New("quadsprite: digit out of palette range")
	// ErrMalformed is returned for encoded sprites that cannot be tokenized.
	ErrMalformed = errors.New("quadsprite: malformed sprite string")
)

// FilterPalette is the only filter kind the codec applies.
const FilterPalette = "palette"

// unravelStage expands run-length commands and custom palette mappings into
// a flat string of default-palette digits.
//
// Grammar, where d is the active digit size:
//
//	x<d digits><count>,   run of count copies of one digit group
//	p[i0,i1,...]          switch to a mapping of local indices onto the
//	                      default palette; its digit size comes from its length
//	p                     return to the default palette
//	<d digits>            one pixel
func unravelStage(c *Codec, data any, _ string, _ Attributes) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unravel takes a string, got %T", ErrMalformed, data)
	}
	return c.unravel(s)
}

func (c *Codec) unravel(s string) (string, error) {
	ref, size := c.defaultRef, c.digitSize
	var out strings.Builder
	out.Grow(len(s))

	for loc := 0; loc < len(s); {
		switch s[loc] {
		case ' ', '\t', '\n', '\r':
			loc++

		case 'x':
			comma := strings.IndexByte(s[loc+1:], ',')
			if comma < 0 {
				return "", fmt.Errorf("%w: unterminated run at %d", ErrMalformed, loc)
			}
			comma += loc + 1
			start := loc + 1
			if start+size > comma {
				return "", fmt.Errorf("%w: short run at %d", ErrMalformed, loc)
			}
			digit, ok := ref[s[start:start+size]]
			if !ok {
				return "", fmt.Errorf("%w: %q at %d", ErrBadDigit, s[start:start+size], start)
			}
			n, err := strconv.Atoi(s[start+size : comma])
			if err != nil || n < 0 {
				return "", fmt.Errorf("%w: run count %q at %d", ErrMalformed, s[start+size:comma], loc)
			}
			out.WriteString(strings.Repeat(digit, n))
			loc = comma + 1

		case 'p':
			loc++
			if loc >= len(s) || s[loc] != '[' {
				ref, size = c.defaultRef, c.digitSize
				continue
			}
			end := strings.IndexByte(s[loc:], ']')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated palette mapping at %d", ErrMalformed, loc)
			}
			end += loc
			var err error
			if ref, size, err = c.customRef(s[loc+1 : end]); err != nil {
				return "", err
			}
			loc = end + 1

		default:
			if loc+size > len(s) {
				return "", fmt.Errorf("%w: trailing %q", ErrMalformed, s[loc:])
			}
			digit, ok := ref[s[loc:loc+size]]
			if !ok {
				return "", fmt.Errorf("%w: %q at %d", ErrBadDigit, s[loc:loc+size], loc)
			}
			out.WriteString(digit)
			loc += size
		}
	}
	return out.String(), nil
}

// customRef parses a comma-separated list of default palette indices into a
// digit mapping.
func (c *Codec) customRef(list string) (map[string]string, int, error) {
	parts := strings.Split(list, ",")
	size := DigitSize(len(parts))
	ref := make(map[string]string, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: palette mapping entry %q", ErrMalformed, part)
		}
		if n < 0 || n >= len(c.palette) {
			return nil, 0, fmt.Errorf("%w: palette mapping entry %d", ErrBadDigit, n)
		}
		ref[makeDigit(i, size)] = makeDigit(n, c.digitSize)
	}
	return ref, size, nil
}

// filterStage applies attrs.Filter to an unraveled digit string. Unknown
// filter kinds are logged and skipped.
func filterStage(c *Codec, data any, key string, attrs Attributes) (any, error) {
	s := data.(string)
	f := attrs.Filter
	if f == nil || len(f.Substitutions) == 0 {
		return s, nil
	}
	if f.Kind != FilterPalette {
		logger.WithFields(logrus.Fields{"sprite": key, "kind": f.Kind}).
			Warn("quadsprite: unknown filter kind, sprite left unfiltered")
		return s, nil
	}
	return c.substitute(s, f.Substitutions), nil
}

// substitute replaces every digit group of s found in subs. Groups are
// replaced simultaneously, so chains like 1->2, 2->3 do not cascade.
func (c *Codec) substitute(s string, subs map[string]string) string {
	size := c.digitSize
	padded := make(map[string]string, len(subs))
	for from, to := range subs {
		padded[padDigit(from, size)] = padDigit(to, size)
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i+size <= len(s); i += size {
		g := s[i : i+size]
		if r, ok := padded[g]; ok {
			g = r
		}
		out.WriteString(g)
	}
	return out.String()
}

// expandStage repeats every digit group scale times, widening rows.
func expandStage(c *Codec, data any, _ string, _ Attributes) (any, error) {
	s := data.(string)
	if c.scale == 1 {
		return s, nil
	}
	size := c.digitSize
	var out strings.Builder
	out.Grow(len(s) * c.scale)
	for i := 0; i+size <= len(s); i += size {
		out.WriteString(strings.Repeat(s[i:i+size], c.scale))
	}
	return out.String(), nil
}

// materializeStage converts digit groups into RGBA bytes.
func materializeStage(c *Codec, data any, _ string, _ Attributes) (any, error) {
	s := data.(string)
	size := c.digitSize
	if len(s)%size != 0 {
		return nil, fmt.Errorf("%w: %d digits is not a multiple of %d", ErrMalformed, len(s), size)
	}
	out := make([]uint8, len(s)/size*4)
	for i, o := 0, 0; i < len(s); i, o = i+size, o+4 {
		idx := 0
		for _, ch := range s[i : i+size] {
			if ch < '0' || ch > '9' {
				return nil, fmt.Errorf("%w: %q", ErrBadDigit, s[i:i+size])
			}
			idx = idx*10 + int(ch-'0')
		}
		if idx >= len(c.palette) {
			return nil, fmt.Errorf("%w: %d", ErrBadDigit, idx)
		}
		copy(out[o:o+4], c.palette[idx][:])
	}
	return out, nil
}
