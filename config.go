package quadsprite

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPalette is used when settings name no palette. Index 0 is
// transparent.
var DefaultPalette = Palette{
	{0, 0, 0, 0},
	{255, 255, 255, 255},
	{0, 0, 0, 255},
	{188, 188, 188, 255},
	{116, 116, 116, 255},
	{252, 216, 168, 255},
	{200, 76, 12, 255},
	{216, 40, 0, 255},
	{0, 168, 0, 255},
	{32, 56, 236, 255},
}

// EnvPrefix prefixes environment variables overriding settings, e.g.
// QUADSPRITE_SCALE or QUADSPRITE_GRID_ROWS.
const EnvPrefix = "QUADSPRITE"

// Settings is the file form of the codec and grid configuration.
type Settings struct {
	Palette         [][4]uint8 `mapstructure:"palette"`
	Scale           int        `mapstructure:"scale"`
	FlipHoriz       string     `mapstructure:"flip_horiz"`
	FlipVert        string     `mapstructure:"flip_vert"`
	Normal          string     `mapstructure:"normal"`
	SizingCacheCost int64      `mapstructure:"sizing_cache_cost"`
	// LibraryPath and FiltersPath point at JSON files read by LoadAssets.
	LibraryPath string `mapstructure:"library"`
	FiltersPath string `mapstructure:"filters"`
	Debug       bool   `mapstructure:"debug"`

	Grid GridConfig `mapstructure:"grid"`
}

// GridConfig is the file form of GridSettings.
type GridConfig struct {
	Rows           int      `mapstructure:"rows"`
	Cols           int      `mapstructure:"cols"`
	QuadrantWidth  float64  `mapstructure:"quadrant_width"`
	QuadrantHeight float64  `mapstructure:"quadrant_height"`
	StartLeft      float64  `mapstructure:"start_left"`
	StartTop       float64  `mapstructure:"start_top"`
	Groups         []string `mapstructure:"groups"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("scale", 1)
	v.SetDefault("flip_horiz", DefaultFlipHoriz)
	v.SetDefault("flip_vert", DefaultFlipVert)
	v.SetDefault("normal", DefaultNormal)
	v.SetDefault("sizing_cache_cost", DefaultSizingCacheCost)
	v.SetDefault("debug", false)
	v.SetDefault("grid.rows", 4)
	v.SetDefault("grid.cols", 4)
	v.SetDefault("grid.quadrant_width", 128)
	v.SetDefault("grid.quadrant_height", 128)
	v.SetDefault("grid.start_left", 0)
	v.SetDefault("grid.start_top", 0)
	v.SetDefault("grid.groups", []string{"solid", "character"})
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads settings from a YAML, JSON or TOML file, chosen by
// extension. Missing fields take their defaults; environment variables
// override both.
func LoadSettings(path string) (Settings, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("quadsprite: read settings %s: %w", path, err)
	}
	return decodeSettings(v)
}

// ReadSettings reads settings of the given format ("yaml", "json", "toml")
// from r.
func ReadSettings(r io.Reader, format string) (Settings, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return Settings{}, fmt.Errorf("quadsprite: read settings: %w", err)
	}
	return decodeSettings(v)
}

// DefaultSettings returns the defaults with environment overrides applied.
func DefaultSettings() (Settings, error) {
	return decodeSettings(newViper())
}

// BindViper exposes the defaults to callers that layer their own flags over
// them, such as command-line tools.
func BindViper() *viper.Viper {
	return newViper()
}

// SettingsFrom decodes settings out of v, typically one from BindViper.
func SettingsFrom(v *viper.Viper) (Settings, error) {
	return decodeSettings(v)
}

func decodeSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("quadsprite: decode settings: %w", err)
	}
	return s, nil
}

// Colors returns the configured palette, or DefaultPalette if none is set.
func (s Settings) Colors() Palette {
	if len(s.Palette) == 0 {
		return append(Palette(nil), DefaultPalette...)
	}
	p := make(Palette, len(s.Palette))
	for i, c := range s.Palette {
		p[i] = RGBA(c)
	}
	return p
}

// CodecSettings combines the settings with a loaded library and filters.
func (s Settings) CodecSettings(lib *Library, filters map[string]Filter) CodecSettings {
	return CodecSettings{
		Palette:         s.Colors(),
		Library:         lib,
		Filters:         filters,
		Scale:           s.Scale,
		FlipHoriz:       s.FlipHoriz,
		FlipVert:        s.FlipVert,
		Normal:          s.Normal,
		SizingCacheCost: s.SizingCacheCost,
	}
}

// GridSettings converts the grid section. Callbacks are left for the caller.
func (s Settings) GridSettings() GridSettings {
	return GridSettings{
		NumRows:        s.Grid.Rows,
		NumCols:        s.Grid.Cols,
		QuadrantWidth:  s.Grid.QuadrantWidth,
		QuadrantHeight: s.Grid.QuadrantHeight,
		StartLeft:      s.Grid.StartLeft,
		StartTop:       s.Grid.StartTop,
		GroupNames:     s.Grid.Groups,
	}
}

// LoadAssets reads the library and filter files named by the settings.
// Unset paths yield an empty library and no filters.
func (s Settings) LoadAssets() (*Library, map[string]Filter, error) {
	lib := NewLibrary()
	if s.LibraryPath != "" {
		data, err := os.ReadFile(s.LibraryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("quadsprite: read library: %w", err)
		}
		if lib, err = LoadLibrary(data); err != nil {
			return nil, nil, err
		}
	}
	var filters map[string]Filter
	if s.FiltersPath != "" {
		data, err := os.ReadFile(s.FiltersPath)
		if err != nil {
			return nil, nil, fmt.Errorf("quadsprite: read filters: %w", err)
		}
		if filters, err = LoadFilters(data); err != nil {
			return nil, nil, err
		}
	}
	return lib, filters, nil
}

// NewCodec loads the configured assets and builds a Codec. It also applies
// the debug flag to the package logger.
func (s Settings) NewCodec() (*Codec, error) {
	SetDebug(s.Debug)
	lib, filters, err := s.LoadAssets()
	if err != nil {
		return nil, err
	}
	return NewCodec(s.CodecSettings(lib, filters))
}
