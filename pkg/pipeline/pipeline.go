// Package pipeline runs card renders behind the image cache.
//
// This package joins the renderer and the cache so that the CLI, the
// prerenderer and the HTTP server share the same caching behavior.
//
// # Usage
//
// Create a Runner and execute requests:
//
//	runner := pipeline.NewRunner(store, renderer, buildinfo.Namespace(), logger)
//	res, err := runner.Execute(ctx, card.Request{
//	    Route:   "/blog/hello",
//	    Options: opts,
//	    Props:   map[string]any{"title": "Hello"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w.Header().Set("Content-Type", res.ContentType())
//
// # Caching
//
// Every render is keyed by a fingerprint of the template content hash, the
// requested render options, the props and the namespace version. Entries
// are immutable; a changed input produces a new fingerprint and a new entry.
//
// Concurrent misses for the same fingerprint share one render. The render
// runs detached from the callers' contexts: a caller that gives up does not
// cancel it, and the result still lands in the cache for everyone else.
//
// Storage failures never fail a request. Reads that error are treated as
// misses and writes that error are logged; the request is served from a
// fresh render either way.
package pipeline

import (
	"time"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/card"
)

// Inputs are the values a fingerprint is computed from.
type Inputs struct {
	TemplateHash string
	Options      card.RenderOptions
	Props        map[string]any
}

// Fingerprint returns the cache key for in under namespace.
func (in Inputs) Fingerprint(namespace string) string {
	return cache.Fingerprint(in.TemplateHash, in.Options, in.Props, namespace)
}

// Entry is a stored render result. It is written once and never modified.
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	Data        []byte        `json:"data"`
	ContentType string        `json:"content_type"`
	Format      card.Format   `json:"format"`
	Requested   card.Format   `json:"requested"`
	Mode        card.Mode     `json:"mode"`
	FellBack    bool          `json:"fell_back"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         card.Duration `json:"ttl"`
}

func newEntry(fingerprint string, img card.Image, ttl time.Duration, now time.Time) Entry {
	return Entry{
		Fingerprint: fingerprint,
		Data:        img.Data,
		ContentType: img.ContentType(),
		Format:      img.Format,
		Requested:   img.Requested,
		Mode:        img.Mode,
		FellBack:    img.FellBack,
		CreatedAt:   now,
		TTL:         card.Duration(ttl),
	}
}

// Expired reports whether e is past its TTL at now. A zero TTL never
// expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.CreatedAt.Add(e.TTL.Std()))
}

// Image returns the stored image.
func (e Entry) Image() card.Image {
	return card.Image{
		Data:      e.Data,
		Format:    e.Format,
		Requested: e.Requested,
		Mode:      e.Mode,
		FellBack:  e.FellBack,
	}
}

// Result is a served image with its cache metadata.
type Result struct {
	card.Image
	Fingerprint string
	CreatedAt   time.Time
	TTL         time.Duration
	// Cached is set when the image came from storage without rendering.
	Cached bool
	// Shared is set when the caller waited on another caller's render.
	Shared bool
}

// MaxAge returns how long clients may cache the image.
func (r Result) MaxAge(now time.Time) time.Duration {
	if r.TTL <= 0 {
		return 0
	}
	left := r.CreatedAt.Add(r.TTL).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func (e Entry) result(cached, shared bool) Result {
	return Result{
		Image:       e.Image(),
		Fingerprint: e.Fingerprint,
		CreatedAt:   e.CreatedAt,
		TTL:         e.TTL.Std(),
		Cached:      cached,
		Shared:      shared,
	}
}
