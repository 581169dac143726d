package quadsprite

import (
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var testPalette = Palette{
	{0, 0, 0, 0},
	{255, 255, 255, 255},
	{0, 0, 0, 255},
	{255, 0, 0, 255},
}

var (
	clearPx = testPalette[0]
	white   = testPalette[1]
	black   = testPalette[2]
	red     = testPalette[3]
)

func newTestCodec(t testing.TB, lib string, settings CodecSettings) *Codec {
	t.Helper()
	if settings.Palette == nil {
		settings.Palette = testPalette
	}
	if lib != "" {
		settings.Library = mustLibrary(t, lib)
	}
	c, err := NewCodec(settings)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func colorsOf(pixels []uint8) []RGBA {
	out := make([]RGBA, 0, len(pixels)/4)
	for i := 0; i+3 < len(pixels); i += 4 {
		out = append(out, RGBA{pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]})
	}
	return out
}

func repeatColor(c RGBA, n int) []RGBA {
	out := make([]RGBA, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func captureLogs(t *testing.T) *test.Hook {
	t.Helper()
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.WarnLevel)
	SetLogger(l)
	t.Cleanup(func() { SetLogger(nil) })
	return hook
}

func TestCodec_RunLengthScenario(t *testing.T) {
	c := newTestCodec(t, `{"s": "x010,"}`, CodecSettings{
		Palette: Palette{{0, 0, 0, 255}, {255, 255, 255, 255}},
	})
	s, err := c.DecodeSprite("s", Attributes{Width: 10, Height: 1})
	if err != nil {
		t.Fatalf("DecodeSprite: %v", err)
	}
	if s.Width != 10 || s.Height != 1 {
		t.Errorf("size = %dx%d, want 10x1", s.Width, s.Height)
	}
	want := repeatColor(RGBA{0, 0, 0, 255}, 10)
	if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, want) {
		t.Errorf("pixels = %v, want %v", got, want)
	}
}

func TestCodec_Unravel(t *testing.T) {
	c := newTestCodec(t, "", CodecSettings{})
	tests := []struct {
		name, in string
		want     []RGBA
	}{
		{"literal", "0123", []RGBA{clearPx, white, black, red}},
		{"whitespace", "01\n 2\t3", []RGBA{clearPx, white, black, red}},
		{"run", "1x23,1", []RGBA{white, black, black, black, white}},
		{"zero run", "x20,1", []RGBA{white}},
		{"custom mapping", "p[3,1]x04,1p2", []RGBA{red, red, red, red, white, black}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := c.DecodeString(tt.in, Attributes{Width: len(tt.want)})
			if err != nil {
				t.Fatalf("DecodeString(%q): %v", tt.in, err)
			}
			if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCodec_UnravelWideMapping(t *testing.T) {
	// Eleven mapped entries need two digits each.
	c := newTestCodec(t, "", CodecSettings{})
	s, err := c.DecodeString("p[0,0,0,0,0,0,0,0,0,0,3]1000p1", Attributes{Width: 3})
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	want := []RGBA{red, clearPx, white}
	if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, want) {
		t.Errorf("pixels = %v, want %v", got, want)
	}
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := newTestCodec(t, `{"a": {"b": "11"}, "m": ["multiple", "vertical", {"top": "11"}]}`, CodecSettings{})
	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"bad digit", func() error { _, err := c.DecodeString("019", Attributes{Width: 3}); return err }, ErrBadDigit},
		{"bad mapping", func() error { _, err := c.DecodeString("p[7]0", Attributes{Width: 1}); return err }, ErrBadDigit},
		{"unterminated run", func() error { _, err := c.DecodeString("x14", Attributes{Width: 4}); return err }, ErrMalformed},
		{"unterminated mapping", func() error { _, err := c.DecodeString("p[1,2", Attributes{Width: 1}); return err }, ErrMalformed},
		{"ragged rows", func() error { _, err := c.DecodeString("111", Attributes{Width: 2}); return err }, ErrBadDimensions},
		{"zero width", func() error { _, err := c.Decode("a b", Attributes{}); return err }, ErrBadAttributes},
		{"no match", func() error { _, err := c.Decode("zzz", Attributes{Width: 1}); return err }, ErrNoSprite},
		{"stops at node", func() error { _, err := c.Decode("a", Attributes{Width: 1}); return err }, ErrNoSprite},
		{"multiple as sprite", func() error { _, err := c.DecodeSprite("m", Attributes{Width: 2}); return err }, ErrNotSprite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewCodec_Errors(t *testing.T) {
	if _, err := NewCodec(CodecSettings{}); !errors.Is(err, ErrNoPalette) {
		t.Errorf("empty palette err = %v, want ErrNoPalette", err)
	}
	if _, err := NewCodec(CodecSettings{Palette: testPalette, Scale: -1}); !errors.Is(err, ErrBadAttributes) {
		t.Errorf("negative scale err = %v, want ErrBadAttributes", err)
	}
	bad := []string{
		`{"a": ["same", ["missing"]]}`,
		`{"a": ["same", ["b"]], "b": ["same", ["a"]]}`,
		`{"a": ["filter", ["missing"], "f"]}`,
		`{"a": "9"}`,
	}
	for _, lib := range bad {
		_, err := NewCodec(CodecSettings{Palette: testPalette, Library: mustLibrary(t, lib)})
		if err == nil {
			t.Errorf("NewCodec(%s) succeeded, want error", lib)
		}
	}
	_, err := NewCodec(CodecSettings{Palette: testPalette, Library: mustLibrary(t, bad[1])})
	if !errors.Is(err, ErrBadDirective) {
		t.Errorf("cycle err = %v, want ErrBadDirective", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	palettes := map[string]Palette{
		"small": testPalette,
		"wide": {
			{0, 0, 0, 0}, {255, 255, 255, 255}, {0, 0, 0, 255}, {255, 0, 0, 255},
			{0, 255, 0, 255}, {0, 0, 255, 255}, {10, 20, 30, 255}, {40, 50, 60, 128},
			{70, 80, 90, 255}, {100, 110, 120, 255}, {130, 140, 150, 255}, {160, 170, 180, 64},
		},
		// Transparent entries that still carry color.
		"tinted": {{0, 0, 0, 0}, {255, 0, 0, 0}, {0, 0, 255, 0}, {255, 255, 255, 255}},
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for name, p := range palettes {
		t.Run(name, func(t *testing.T) {
			c := newTestCodec(t, "", CodecSettings{Palette: p})
			const w, h = 7, 5
			src := make([]RGBA, w*h)
			for i := range src {
				// Runs of varying length exercise both literal and x-run output.
				if i > 0 && rng.IntN(3) > 0 {
					src[i] = src[i-1]
					continue
				}
				src[i] = p[rng.IntN(len(p))]
			}
			pixels := pixelsOf(src...)

			encoded, err := c.EncodePixels(pixels)
			if err != nil {
				t.Fatalf("EncodePixels: %v", err)
			}
			s, err := c.DecodeString(encoded, Attributes{Width: w, Height: h})
			if err != nil {
				t.Fatalf("DecodeString(%q): %v", encoded, err)
			}
			if !reflect.DeepEqual(s.Pixels, pixels) {
				t.Errorf("round trip of %q =\n%v\nwant\n%v", encoded, colorsOf(s.Pixels), src)
			}
		})
	}
}

func TestCodec_DecodeStringIgnoresLibraryPaths(t *testing.T) {
	// The path "0" is itself a valid one-pixel sprite string.
	c := newTestCodec(t, `{"0": "x110,"}`, CodecSettings{})

	s, err := c.DecodeString("0", Attributes{Width: 1, Height: 1})
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if s.Width != 1 || s.Height != 1 || s.At(0, 0) != testPalette[0] {
		t.Errorf("DecodeString(0) = %dx%d %v, want one clear pixel", s.Width, s.Height, colorsOf(s.Pixels))
	}
	lib, err := c.DecodeSprite("0", Attributes{Width: 10, Height: 1})
	if err != nil {
		t.Fatalf("DecodeSprite: %v", err)
	}
	if lib.Width != 10 || lib.At(9, 0) != testPalette[1] {
		t.Errorf("library sprite 0 = %v, want ten white pixels", colorsOf(lib.Pixels))
	}
}

func TestCodec_EncodeRuns(t *testing.T) {
	c := newTestCodec(t, "", CodecSettings{})
	// Local palette: clear, then grays ascending (black, white). One digit
	// per pixel, so runs of more than four are written as x-runs.
	got, err := c.EncodePixels(pixelsOf(append(repeatColor(white, 5), black, black, black, black)...))
	if err != nil {
		t.Fatalf("EncodePixels: %v", err)
	}
	if want := "p[0,2,1]x25,1111"; got != want {
		t.Errorf("EncodePixels = %q, want %q", got, want)
	}

	if _, err := c.EncodePixels([]uint8{1, 2, 3}); !errors.Is(err, ErrBadDimensions) {
		t.Errorf("partial pixel err = %v, want ErrBadDimensions", err)
	}
}

func TestCodec_EncodeImage(t *testing.T) {
	c := newTestCodec(t, "", CodecSettings{})
	img := image.NewRGBA(image.Rect(10, 10, 13, 11))
	img.Set(10, 10, color.RGBA{255, 0, 0, 255})
	img.Set(11, 10, color.RGBA{250, 250, 250, 255}) // quantized to white
	img.Set(12, 10, color.RGBA{0, 0, 0, 0})

	encoded, err := c.Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s, err := c.DecodeString(encoded, Attributes{Width: 3})
	if err != nil {
		t.Fatalf("DecodeString(%q): %v", encoded, err)
	}
	want := []RGBA{red, white, clearPx}
	if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, want) {
		t.Errorf("pixels = %v, want %v", got, want)
	}
}

func TestCodec_Scale(t *testing.T) {
	c := newTestCodec(t, `{"s": "12"}`, CodecSettings{Scale: 2})
	s, err := c.DecodeSprite("s", Attributes{Width: 2, Height: 1})
	if err != nil {
		t.Fatalf("DecodeSprite: %v", err)
	}
	if s.Width != 4 || s.Height != 2 {
		t.Fatalf("size = %dx%d, want 4x2", s.Width, s.Height)
	}
	row := []RGBA{white, white, black, black}
	want := append(append([]RGBA(nil), row...), row...)
	if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, want) {
		t.Errorf("pixels = %v, want %v", got, want)
	}
}

func TestCodec_Flip(t *testing.T) {
	c := newTestCodec(t, `{"s": {"normal": "1230"}}`, CodecSettings{})
	tests := []struct {
		key  string
		want []RGBA
	}{
		{"s", []RGBA{white, black, red, clearPx}},
		{"s flipped", []RGBA{black, white, clearPx, red}},
		{"s flip-vert", []RGBA{red, clearPx, white, black}},
		{"s flipped flip-vert", []RGBA{clearPx, red, black, white}},
	}
	for _, tt := range tests {
		s, err := c.DecodeSprite(tt.key, Attributes{Width: 2, Height: 2})
		if err != nil {
			t.Fatalf("DecodeSprite(%q): %v", tt.key, err)
		}
		if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DecodeSprite(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	// Flipping must not disturb the stored sprite.
	again, _ := c.DecodeSprite("s", Attributes{Width: 2, Height: 2})
	if got := colorsOf(again.Pixels); !reflect.DeepEqual(got, tests[0].want) {
		t.Errorf("unflipped after flips = %v", got)
	}
}

func TestCodec_CustomFlipMarkers(t *testing.T) {
	c := newTestCodec(t, `{"s": {"normal": "12"}}`, CodecSettings{FlipHoriz: "mirror"})
	s, err := c.DecodeSprite("s mirror", Attributes{Width: 2})
	if err != nil {
		t.Fatalf("DecodeSprite: %v", err)
	}
	if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, []RGBA{black, white}) {
		t.Errorf("pixels = %v, want [black white]", got)
	}
}

func TestCodec_Directives(t *testing.T) {
	c := newTestCodec(t, `{
		"base": {"normal": "12", "alt": "33"},
		"copy": ["same", ["base", "normal"]],
		"chain": ["same", ["copy"]],
		"swapped": ["filter", ["base", "normal"], "swap"],
		"swappedCopy": ["filter", ["copy"], "swap"]
	}`, CodecSettings{
		Filters: map[string]Filter{
			"swap": {Kind: FilterPalette, Substitutions: map[string]string{"1": "2", "2": "3"}},
		},
	})
	tests := []struct {
		key  string
		want []RGBA
	}{
		{"base", []RGBA{white, black}},
		{"base alt", []RGBA{red, red}},
		{"copy", []RGBA{white, black}},
		{"chain", []RGBA{white, black}},
		// Substitutions apply at once: 1->2 does not continue to 3.
		{"swapped", []RGBA{black, red}},
		{"swappedCopy", []RGBA{black, red}},
	}
	for _, tt := range tests {
		s, err := c.DecodeSprite(tt.key, Attributes{Width: 2})
		if err != nil {
			t.Fatalf("DecodeSprite(%q): %v", tt.key, err)
		}
		if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DecodeSprite(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	base, _ := c.Library().Resolve([]string{"base", "normal"})
	copied, _ := c.Library().Resolve([]string{"copy"})
	if &base.([]uint8)[0] != &copied.([]uint8)[0] {
		t.Error("same directive should share the decoded buffer")
	}
}

func TestCodec_UnknownFilterWarns(t *testing.T) {
	hook := captureLogs(t)
	c := newTestCodec(t, `{"base": "12", "f": ["filter", ["base"], "nope"], "g": ["filter", ["base"], "odd"]}`, CodecSettings{
		Filters: map[string]Filter{
			"odd": {Kind: "hue", Substitutions: map[string]string{"1": "3"}},
		},
	})
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("log entries = %d, want 2", len(hook.AllEntries()))
	}
	for _, e := range hook.AllEntries() {
		if e.Level != logrus.WarnLevel {
			t.Errorf("level = %v, want warning", e.Level)
		}
	}
	if got := hook.AllEntries()[0].Data["filter"]; got != "nope" {
		t.Errorf("first warning filter = %v, want nope", got)
	}
	if got := hook.LastEntry().Data["kind"]; got != "hue" {
		t.Errorf("second warning kind = %v, want hue", got)
	}
	for _, key := range []string{"f", "g"} {
		s, err := c.DecodeSprite(key, Attributes{Width: 2})
		if err != nil {
			t.Fatalf("DecodeSprite(%q): %v", key, err)
		}
		if got := colorsOf(s.Pixels); !reflect.DeepEqual(got, []RGBA{white, black}) {
			t.Errorf("DecodeSprite(%q) = %v, want unfiltered", key, got)
		}
	}
}

func TestCodec_SizedCache(t *testing.T) {
	c := newTestCodec(t, `{"s": "1122"}`, CodecSettings{})
	a, err := c.DecodeSprite("s", Attributes{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("DecodeSprite: %v", err)
	}
	b, _ := c.DecodeSprite("s", Attributes{Width: 2, Height: 2})
	if a != b {
		t.Error("second decode did not come from the sizing cache")
	}
	wide, _ := c.DecodeSprite("s", Attributes{Width: 4, Height: 1})
	if wide == a || wide.Width != 4 || wide.Height != 1 {
		t.Errorf("different size reused cached sprite: %dx%d", wide.Width, wide.Height)
	}

	st := c.Stats()
	if st.SizedEntries != 2 || st.SizedBytes != 32 {
		t.Errorf("Stats = %+v, want 2 sized entries of 32 bytes", st)
	}
	if st.LookupEntries != 1 {
		t.Errorf("LookupEntries = %d, want 1", st.LookupEntries)
	}

	c.ClearCaches()
	st = c.Stats()
	if st.LookupEntries != 0 || st.PipelineEntries != 0 || st.SizedEntries != 0 {
		t.Errorf("Stats after ClearCaches = %+v", st)
	}
	again, err := c.DecodeSprite("s", Attributes{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("DecodeSprite after clear: %v", err)
	}
	if !reflect.DeepEqual(again.Pixels, a.Pixels) {
		t.Error("decode after clear differs")
	}
}
