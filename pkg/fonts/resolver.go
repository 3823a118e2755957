package fonts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/httputil"
)

// CSS font formats.
const (
	FormatTrueType = "truetype"
	FormatOpenType = "opentype"
)

// DefaultCSSURL is the Google Fonts CSS API used for remote descriptors.
const DefaultCSSURL = "https://fonts.googleapis.com/css2"

// maxFontSize bounds downloaded font files.
const maxFontSize = 16 << 20

// Resolver loads font bytes. Loaded faces are memoized in process and remote
// downloads are stored in Cache, so each face is fetched at most once.
type Resolver struct {
	// Cache stores downloaded fonts. Nil disables persistent memoization.
	Cache cache.Cache
	// Client performs remote fetches. Nil uses a client with a 30s timeout.
	Client *http.Client
	// CSSURL is the CSS API endpoint. Empty uses [DefaultCSSURL].
	CSSURL string
	// BaseDir resolves relative local paths.
	BaseDir string
	Logger  *log.Logger

	mu     sync.RWMutex
	loaded map[string]card.FontFace
	group  singleflight.Group
}

// NewResolver creates a resolver backed by c.
func NewResolver(c cache.Cache, logger *log.Logger) *Resolver {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		Cache:  c,
		Client: &http.Client{Timeout: 30 * time.Second},
		Logger: logger,
	}
}

// LoadAll loads every descriptor in order. It fails on the first face that
// cannot be loaded.
func (r *Resolver) LoadAll(ctx context.Context, descs []card.FontDescriptor) ([]card.FontFace, error) {
	faces := make([]card.FontFace, 0, len(descs))
	for _, d := range descs {
		f, err := r.Load(ctx, d)
		if err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return faces, nil
}

// Load returns the face for d from its highest-precedence source.
func (r *Resolver) Load(ctx context.Context, d card.FontDescriptor) (card.FontFace, error) {
	d = d.Collapse()
	key := d.Source().String() + ":" + d.Key() + ":" + d.Path + d.Embedded + d.Remote

	r.mu.RLock()
	f, ok := r.loaded[key]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	// The flight outlives any single caller; each caller only stops waiting.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		r.mu.RLock()
		f, ok := r.loaded[key]
		r.mu.RUnlock()
		if ok {
			return f, nil
		}

		data, err := r.read(flightCtx, d)
		if err != nil {
			return nil, err
		}
		format, err := Validate(data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFont, err, "font %s", d.Key())
		}
		f = card.FontFace{Descriptor: d, Data: data, Format: format}

		r.mu.Lock()
		if r.loaded == nil {
			r.loaded = make(map[string]card.FontFace)
		}
		r.loaded[key] = f
		r.mu.Unlock()
		return f, nil
	})
	select {
	case <-ctx.Done():
		return card.FontFace{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return card.FontFace{}, res.Err
		}
		return res.Val.(card.FontFace), nil
	}
}

func (r *Resolver) read(ctx context.Context, d card.FontDescriptor) ([]byte, error) {
	switch d.Source() {
	case card.FontSourceLocal:
		path := d.Path
		if !filepath.IsAbs(path) {
			if err := errors.ValidatePath(path); err != nil {
				return nil, err
			}
			path = filepath.Join(r.BaseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New(errors.ErrCodeFontNotFound, "font file %s not found", d.Path)
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidFont, err, "read font %s", d.Path)
		}
		return data, nil
	case card.FontSourceEmbedded:
		data, ok := Embedded(d.Embedded)
		if !ok {
			return nil, errors.New(errors.ErrCodeFontNotFound, "no embedded font %q", d.Embedded)
		}
		return data, nil
	case card.FontSourceRemote:
		return r.fetch(ctx, d)
	}
	return nil, errors.New(errors.ErrCodeFontNotFound, "font %s has no source", d.Key())
}

// fetch returns remote font bytes from the cache or the CSS API.
func (r *Resolver) fetch(ctx context.Context, d card.FontDescriptor) ([]byte, error) {
	cacheKey := "remote/" + d.Remote
	if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		return data, nil
	} else if err != nil {
		r.Logger.Warn("font cache read failed", "font", d.Remote, "error", err)
	}

	name, weight := remoteParts(d)
	cssURL := r.CSSURL
	if cssURL == "" {
		cssURL = DefaultCSSURL
	}
	u := fmt.Sprintf("%s?family=%s:wght@%d", cssURL, url.QueryEscape(name), weight)

	css, err := r.get(ctx, u)
	if err != nil {
		return nil, err
	}
	src, err := fontURL(css)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "font %s", d.Remote)
	}
	data, err := r.get(ctx, src)
	if err != nil {
		return nil, err
	}

	if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLFont); err != nil {
		r.Logger.Warn("font cache write failed", "font", d.Remote, "error", err)
	}
	r.Logger.Debug("fetched font", "font", d.Remote, "bytes", len(data))
	return data, nil
}

// remoteParts splits the remote key "Name:weight", falling back to the
// descriptor's own fields.
func remoteParts(d card.FontDescriptor) (string, int) {
	if parsed, err := card.ParseFontShorthand(d.Remote); err == nil {
		return parsed.Name, parsed.Weight
	}
	return d.Name, d.Weight
}

func (r *Resolver) get(ctx context.Context, u string) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	var body []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		// Without a browser User-Agent the CSS API serves TrueType sources.
		req.Header.Set("User-Agent", "linkcard")

		resp, err := client.Do(req)
		if err != nil {
			return &httputil.RetryableError{Err: err}
		}
		defer resp.Body.Close()

		if err := httputil.CheckStatus(resp); err != nil {
			if code := httputil.StatusCode(err); code == http.StatusNotFound || code == http.StatusBadRequest {
				return errors.Wrap(errors.ErrCodeFontNotFound, err, "font not available")
			}
			return err
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontSize+1))
		if err != nil {
			return &httputil.RetryableError{Err: err}
		}
		if len(data) > maxFontSize {
			return errors.New(errors.ErrCodeInvalidFont, "fetch %s: response exceeds %d bytes", u, maxFontSize)
		}
		body = data
		return nil
	})
	if err != nil && errors.GetCode(err) == "" {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", u)
	}
	return body, err
}

var srcURLRe = regexp.MustCompile(`src:\s*url\(['"]?([^'")]+)['"]?\)`)

// fontURL extracts the first font source URL from an @font-face stylesheet.
func fontURL(css []byte) (string, error) {
	m := srcURLRe.FindSubmatch(css)
	if m == nil {
		return "", fmt.Errorf("no font source in stylesheet")
	}
	return string(m[1]), nil
}

// Validate parses data as an SFNT font and returns its CSS format.
func Validate(data []byte) (string, error) {
	if _, err := sfnt.Parse(data); err != nil {
		return "", fmt.Errorf("parse font: %w", err)
	}
	if bytes.HasPrefix(data, []byte("OTTO")) {
		return FormatOpenType, nil
	}
	return FormatTrueType, nil
}
