package config

import (
	"encoding/json"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/peterbourgon/mergemap"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/errors"
)

// NormalizeRoute cleans a page route: a leading slash, no trailing slash,
// and "index" meaning the site root.
func NormalizeRoute(route string) (string, error) {
	route = strings.TrimSpace(route)
	if route == "" || route == "index" || route == "/index" {
		return "/", nil
	}
	if strings.Contains(route, "..") {
		return "", errors.New(errors.ErrCodeInvalidPath, "invalid route %q", route)
	}
	route = path.Clean("/" + route)
	if strings.HasSuffix(route, "/index") {
		route = strings.TrimSuffix(route, "/index")
	}
	if route == "" {
		route = "/"
	}
	return route, nil
}

// Page returns the configured page for route.
func (c *Config) Page(route string) (Page, bool) {
	for _, p := range c.Pages {
		if r, err := NormalizeRoute(p.Route); err == nil && r == route {
			return p, true
		}
	}
	return Page{}, false
}

// matchingRoutes returns the [routes] patterns that match route, least
// specific first so that longer patterns win.
func (c *Config) matchingRoutes(route string) []string {
	var out []string
	for pattern := range c.Routes {
		if matchRoute(pattern, route) {
			out = append(out, pattern)
		}
	}
	slices.SortFunc(out, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return strings.Compare(a, b)
	})
	return out
}

// matchRoute matches a route against a glob pattern. A trailing "/**"
// matches the prefix and everything below it.
func matchRoute(pattern, route string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return route == prefix || strings.HasPrefix(route, prefix+"/") || prefix == ""
	}
	ok, err := path.Match(pattern, route)
	return err == nil && ok
}

// Options returns the merged render options for route: built-in defaults,
// [defaults], matching [routes] entries, then the page's options.
func (c *Config) Options(route string) (card.RenderOptions, error) {
	layers := []map[string]any{c.Defaults}
	for _, pattern := range c.matchingRoutes(route) {
		layers = append(layers, c.Routes[pattern])
	}
	if p, ok := c.Page(route); ok {
		layers = append(layers, p.Options)
	}
	return MergeOptions(card.DefaultOptions(), layers...)
}

// MergeOptions layers override maps onto base. Keys use the JSON names of
// [card.RenderOptions]; later layers win.
func MergeOptions(base card.RenderOptions, layers ...map[string]any) (card.RenderOptions, error) {
	merged, err := toMap(base)
	if err != nil {
		return card.RenderOptions{}, err
	}
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		l, err := deepCopy(layer)
		if err != nil {
			return card.RenderOptions{}, err
		}
		merged = mergemap.Merge(merged, l)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return card.RenderOptions{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "encode options")
	}
	var out card.RenderOptions
	if err := json.Unmarshal(data, &out); err != nil {
		return card.RenderOptions{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode options")
	}
	return out, nil
}

// Request builds the render request for route. Page props come first and
// extra props override them.
func (c *Config) Request(route string, extra map[string]any) (card.Request, error) {
	route, err := NormalizeRoute(route)
	if err != nil {
		return card.Request{}, err
	}
	page, ok := c.Page(route)
	if !ok && c.StrictPages {
		return card.Request{}, errors.New(errors.ErrCodePageNotFound, "no page configured for %s", route)
	}
	opts, err := c.Options(route)
	if err != nil {
		return card.Request{}, err
	}

	props := make(map[string]any, len(page.Props)+len(extra))
	maps.Copy(props, page.Props)
	maps.Copy(props, extra)
	return card.Request{Route: route, Options: opts, Props: props}, nil
}

// PageRoutes returns the configured page routes in file order.
func (c *Config) PageRoutes() []string {
	out := make([]string, 0, len(c.Pages))
	for _, p := range c.Pages {
		if r, err := NormalizeRoute(p.Route); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "encode options")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode options")
	}
	return m, nil
}

// deepCopy detaches nested maps from the config so merging never mutates it.
func deepCopy(m map[string]any) (map[string]any, error) {
	return toMap(m)
}
