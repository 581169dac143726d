// Command spritenc encodes PNG images into quadsprite sprite strings.
//
// For every image it prints the palette generated from the image's own
// colors and the sprite string encoded against the configured palette:
//
//	spritenc --config sprites.yaml hero.png coin.png
//	spritenc --own-palette --verify hero.png
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"

	"github.com/phanxgames/quadsprite"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("spritenc", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "settings file (yaml, json or toml)")
	flags.Bool("own-palette", false, "encode against the image's generated palette")
	flags.Bool("verify", false, "decode the output again and compare pixels")
	flags.Bool("debug", false, "enable debug logging")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: spritenc [flags] image.png...\n")
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	// Stdout carries the encoded sprites.
	quadsprite.SetLogOutput(os.Stderr)
	log := quadsprite.Logger()
	v := quadsprite.BindViper()
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			log.WithError(err).Fatal("spritenc: read settings")
		}
	}
	if err := v.BindPFlags(flags); err != nil {
		log.WithError(err).Fatal("spritenc: bind flags")
	}
	settings, err := quadsprite.SettingsFrom(v)
	if err != nil {
		log.WithError(err).Fatal("spritenc: settings")
	}
	quadsprite.SetDebug(settings.Debug)

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}
	for _, path := range flags.Args() {
		err := encodeFile(os.Stdout, path, settings, v.GetBool("own-palette"), v.GetBool("verify"))
		if err != nil {
			log.WithFields(logrus.Fields{"file": path}).WithError(err).Error("spritenc: encode failed")
			os.Exit(1)
		}
	}
}

func encodeFile(w io.Writer, path string, settings quadsprite.Settings, ownPalette, verify bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("decode png: %w", err)
	}
	b := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)

	generated := quadsprite.GeneratePalette(img.Pix, false)
	palette := settings.Colors()
	if ownPalette {
		palette = generated
	}
	codec, err := quadsprite.NewCodec(quadsprite.CodecSettings{Palette: palette})
	if err != nil {
		return err
	}
	defer codec.Close()

	encoded, err := codec.EncodePixels(img.Pix)
	if err != nil {
		return err
	}
	paletteJSON, err := json.Marshal(generated)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%dx%d)\n  palette: %s\n  sprite:  %s\n", path, b.Dx(), b.Dy(), paletteJSON, encoded)

	if !verify {
		return nil
	}
	decoded, err := codec.DecodeString(encoded, quadsprite.Attributes{Width: b.Dx(), Height: b.Dy()})
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	diff := 0
	for i := 0; i+3 < len(img.Pix); i += 4 {
		want := quadsprite.RGBA{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
		if want[3] == 0 {
			want = quadsprite.RGBA{}
		}
		if decoded.At((i/4)%b.Dx(), (i/4)/b.Dx()) != want {
			diff++
		}
	}
	fmt.Fprintf(w, "  verify:  %d of %d pixels differ\n", diff, len(img.Pix)/4)
	return nil
}
