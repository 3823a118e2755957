package card

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/matzehuels/linkcard/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultTemplate is the template used when no route or page picks one.
	DefaultTemplate = "basic"

	// DefaultWidth is the Open Graph recommended card width in pixels.
	DefaultWidth = 1200

	// DefaultHeight is the Open Graph recommended card height in pixels.
	DefaultHeight = 630

	// DefaultRenderer is the default render strategy.
	DefaultRenderer = ModeVector

	// DefaultFormat is the default output format.
	DefaultFormat = FormatPNG

	// DefaultEmoji is the default emoji set.
	DefaultEmoji = EmojiTwemoji

	// DefaultCacheTTL is the default lifetime of a cached image.
	DefaultCacheTTL = Duration(24 * time.Hour)

	// MaxDimension bounds width and height.
	MaxDimension = 4096
)

// Engine option keys. Each key selects the override map passed to one engine.
const (
	EngineKeyVector     = "vector"
	EngineKeyRasterizer = "rasterizer"
	EngineKeyBrowser    = "browser"
	EngineKeyEncoder    = "encoder"
)

// =============================================================================
// Mode
// =============================================================================

// Mode is the render strategy.
type Mode string

const (
	// ModeVector converts the visual tree to SVG, then rasterizes it.
	ModeVector Mode = "vector"
	// ModeScreenshot renders the tree in a headless browser and captures a bitmap.
	ModeScreenshot Mode = "screenshot"
)

// Alternate returns the other mode.
func (m Mode) Alternate() Mode {
	if m == ModeScreenshot {
		return ModeVector
	}
	return ModeScreenshot
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeVector || m == ModeScreenshot
}

// =============================================================================
// Emoji
// =============================================================================

// Emoji is the emoji rendering set exposed to templates.
type Emoji string

// Supported emoji sets.
const (
	EmojiTwemoji  Emoji = "twemoji"
	EmojiOpenmoji Emoji = "openmoji"
	EmojiNoto     Emoji = "noto"
	EmojiFluent   Emoji = "fluent"
	EmojiNone     Emoji = "none"
)

// Valid reports whether e is a known emoji set.
func (e Emoji) Valid() bool {
	switch e {
	case EmojiTwemoji, EmojiOpenmoji, EmojiNoto, EmojiFluent, EmojiNone:
		return true
	}
	return false
}

// =============================================================================
// Duration
// =============================================================================

// Duration is a time.Duration that decodes from "1h30m" strings or from a
// number of seconds.
type Duration time.Duration

// MarshalJSON encodes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// =============================================================================
// RenderOptions
// =============================================================================

// RenderOptions is the merged, per-request configuration of a render.
// Treat values as immutable: use the With* helpers or Clone to derive a
// modified copy.
type RenderOptions struct {
	Template string                    `json:"template"`
	Width    int                       `json:"width"`
	Height   int                       `json:"height"`
	Renderer Mode                      `json:"renderer"`
	Format   Format                    `json:"format"`
	Engines  map[string]map[string]any `json:"engines,omitempty"`
	CacheTTL Duration                  `json:"cache_ttl"`
	Emoji    Emoji                     `json:"emoji"`
	Fonts    []FontDescriptor          `json:"fonts,omitempty"`
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() RenderOptions {
	return RenderOptions{
		Template: DefaultTemplate,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Renderer: DefaultRenderer,
		Format:   DefaultFormat,
		CacheTTL: DefaultCacheTTL,
		Emoji:    DefaultEmoji,
	}
}

// SetDefaults fills zero-valued fields with the built-in defaults. Width and
// height are left alone so that explicit invalid values still fail
// validation.
func (o *RenderOptions) SetDefaults() {
	if o.Template == "" {
		o.Template = DefaultTemplate
	}
	if o.Renderer == "" {
		o.Renderer = DefaultRenderer
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.Emoji == "" {
		o.Emoji = DefaultEmoji
	}
}

// ValidateDimensions checks width and height. It runs before any engine work.
func (o RenderOptions) ValidateDimensions() error {
	if o.Width <= 0 || o.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidDimensions, "width and height must be positive, got %dx%d", o.Width, o.Height)
	}
	if o.Width > MaxDimension || o.Height > MaxDimension {
		return errors.New(errors.ErrCodeInvalidDimensions, "width and height must not exceed %d, got %dx%d", MaxDimension, o.Width, o.Height)
	}
	return nil
}

// Validate checks every field.
func (o RenderOptions) Validate() error {
	if err := o.ValidateDimensions(); err != nil {
		return err
	}
	if err := errors.ValidateTemplateID(o.Template); err != nil {
		return err
	}
	if !o.Renderer.Valid() {
		return errors.New(errors.ErrCodeInvalidRenderer, "invalid renderer: %q (must be one of: vector, screenshot)", o.Renderer)
	}
	if !o.Format.Valid() {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: png, jpeg, gif, tiff, bmp, svg)", o.Format)
	}
	if !o.Emoji.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, "invalid emoji set: %q", o.Emoji)
	}
	if o.CacheTTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache_ttl must not be negative")
	}
	for _, f := range o.Fonts {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	for k := range o.Engines {
		switch k {
		case EngineKeyVector, EngineKeyRasterizer, EngineKeyBrowser, EngineKeyEncoder:
		default:
			return errors.New(errors.ErrCodeInvalidInput, "unknown engine override %q", k)
		}
	}
	return nil
}

// Clone returns a deep copy of o.
func (o RenderOptions) Clone() RenderOptions {
	out := o
	out.Fonts = slices.Clone(o.Fonts)
	if o.Engines != nil {
		out.Engines = make(map[string]map[string]any, len(o.Engines))
		for k, v := range o.Engines {
			out.Engines[k] = maps.Clone(v)
		}
	}
	return out
}

// WithFormat returns a copy of o with a different format.
func (o RenderOptions) WithFormat(f Format) RenderOptions {
	out := o.Clone()
	out.Format = f
	return out
}

// WithRenderer returns a copy of o with a different renderer.
func (o RenderOptions) WithRenderer(m Mode) RenderOptions {
	out := o.Clone()
	out.Renderer = m
	return out
}

// EngineOptions returns the override map for one engine (never nil).
func (o RenderOptions) EngineOptions(engine string) EngineOptions {
	return EngineOptions(o.Engines[engine])
}

// =============================================================================
// EngineOptions
// =============================================================================

// EngineOptions is a per-engine override map with typed accessors.
type EngineOptions map[string]any

// Int returns the integer value for key, or def.
func (e EngineOptions) Int(key string, def int) int {
	switch v := e[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float returns the float value for key, or def.
func (e EngineOptions) Float(key string, def float64) float64 {
	switch v := e[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// String returns the string value for key, or def.
func (e EngineOptions) String(key, def string) string {
	if v, ok := e[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the boolean value for key, or def.
func (e EngineOptions) Bool(key string, def bool) bool {
	if v, ok := e[key].(bool); ok {
		return v
	}
	return def
}
