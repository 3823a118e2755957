// Package config loads linkcard.toml.
//
// A config file describes the deployment target (preset and compatibility
// overrides), the storage backend, the optional browser engine, and the
// render options for every page. Render options are layered: built-in
// defaults, then the [defaults] table, then every matching [routes] entry,
// then the page's own options. Later layers win key by key; nested tables
// such as engine overrides are merged rather than replaced.
//
//	preset = "docker"
//	templates_dir = "cards"
//
//	[defaults]
//	template = "basic"
//	fonts = ["Inter:400", "Inter:700"]
//
//	[routes."/blog/*"]
//	template = "article"
//	format = "jpeg"
//
//	[[pages]]
//	route = "/blog/hello"
//	props = { title = "Hello" }
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine/browser"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/render"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = "linkcard.toml"

	// DefaultPreset is the deployment preset when none is configured.
	DefaultPreset = "node"

	// DefaultAddr is the server listen address.
	DefaultAddr = ":8080"

	// DefaultFontCSSURL is the stylesheet API remote fonts are looked up in.
	DefaultFontCSSURL = "https://fonts.googleapis.com/css2"

	// DefaultOutDir is where prerendered images are written.
	DefaultOutDir = "public/og"

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Config
// =============================================================================

// Config is the parsed config file.
type Config struct {
	Preset string `toml:"preset"`
	// Debug enables the /debug.json endpoint.
	Debug bool `toml:"debug"`
	// TemplatesDir holds project templates. They override the builtins.
	TemplatesDir string `toml:"templates_dir"`
	// FontsDir is the base directory for local font paths.
	FontsDir string `toml:"fonts_dir"`
	// FontCSSURL is queried for remote font files.
	FontCSSURL string `toml:"font_css_url"`
	// Offline disables remote font fetching.
	Offline bool `toml:"offline"`
	// StrictPages rejects routes that have no [[pages]] entry.
	StrictPages bool `toml:"strict_pages"`
	// OutDir is the prerender output directory.
	OutDir string `toml:"out_dir"`

	Server   ServerConfig   `toml:"server"`
	Cache    cache.Config   `toml:"cache"`
	Browser  browser.Config `toml:"browser"`
	Timeouts Timeouts       `toml:"timeouts"`

	// Compat disables engines per phase, keyed "phase.engine".
	Compat map[string]bool `toml:"compat"`

	Defaults map[string]any            `toml:"defaults"`
	Routes   map[string]map[string]any `toml:"routes"`
	Pages    []Page                    `toml:"pages"`

	// dir is the directory relative paths resolve against.
	dir string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	// QueryProps passes /image query parameters to the template as props.
	// Every distinct query is a separate cache entry.
	QueryProps bool `toml:"query_props"`
}

// Timeouts bounds engine work.
type Timeouts struct {
	Vector     time.Duration `toml:"vector"`
	Screenshot time.Duration `toml:"screenshot"`
	EngineInit time.Duration `toml:"engine_init"`
}

// Page is one page that gets a card.
type Page struct {
	Route   string         `toml:"route"`
	Options map[string]any `toml:"options"`
	Props   map[string]any `toml:"props"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// Load reads and validates the config file at path. Relative paths in the
// file resolve against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "config file %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve config dir")
	}
	c.dir = abs
	return c, nil
}

// LoadOrDefault loads path if it exists and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes and validates TOML config data.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	for _, k := range md.Undecoded() {
		if !freeForm(k) {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", k.String())
		}
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// freeForm reports whether k lies in a table decoded as map[string]any.
// Those tables are checked when they are merged into render options.
func freeForm(k toml.Key) bool {
	switch {
	case len(k) == 0:
		return false
	case k[0] == "defaults" || k[0] == "routes":
		return true
	case k[0] == "pages" && len(k) > 1:
		return k[1] == "options" || k[1] == "props"
	}
	return false
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.Preset == "" {
		c.Preset = DefaultPreset
	}
	if c.FontCSSURL == "" {
		c.FontCSSURL = DefaultFontCSSURL
	}
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Timeouts.Vector <= 0 {
		c.Timeouts.Vector = render.DefaultVectorTimeout
	}
	if c.Timeouts.Screenshot <= 0 {
		c.Timeouts.Screenshot = render.DefaultScreenshotTimeout
	}
}

// Validate checks the preset, compatibility overrides, and that every page
// resolves to valid render options.
func (c *Config) Validate() error {
	if _, ok := compat.LookupPreset(c.Preset); !ok {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown preset %q", c.Preset)
	}
	if _, err := compat.Resolve(c.Preset, nil, c.Compat); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendMemory, cache.BackendFile:
	case cache.BackendRedis, cache.BackendMongo:
		if c.Cache.URL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache backend %q requires url", c.Cache.Backend)
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}

	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		route, err := NormalizeRoute(p.Route)
		if err != nil {
			return err
		}
		if seen[route] {
			return errors.New(errors.ErrCodeInvalidConfig, "duplicate page %q", route)
		}
		seen[route] = true
		opts, err := c.Options(route)
		if err != nil {
			return err
		}
		if err := opts.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "page %s", route)
		}
	}
	return nil
}

// Path resolves p against the config file's directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
