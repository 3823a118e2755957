package cache

import (
	"context"
	"strings"
	"time"
)

// namespaced prefixes every key so that entries from different roots or
// engine versions never collide.
type namespaced struct {
	inner  Cache
	prefix string
}

// Namespaced wraps c so that every key is stored as "<root>/<version>/<key>".
// Empty segments are omitted.
//
// Example usage:
//
//	images := cache.Namespaced(store, "images", buildinfo.Namespace())
//	fonts := cache.Namespaced(store, "fonts")
func Namespaced(c Cache, segments ...string) Cache {
	var parts []string
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return c
	}
	prefix := strings.Join(parts, "/") + "/"
	if ns, ok := c.(*namespaced); ok {
		return &namespaced{inner: ns.inner, prefix: ns.prefix + prefix}
	}
	return &namespaced{inner: c, prefix: prefix}
}

// Prefix returns the key prefix applied by c, or "" if c is not namespaced.
func Prefix(c Cache) string {
	if ns, ok := c.(*namespaced); ok {
		return ns.prefix
	}
	return ""
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, data, ttl)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Close() error {
	return n.inner.Close()
}
