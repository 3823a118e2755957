package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/observability"
	"github.com/matzehuels/linkcard/pkg/render"
)

// keyType labels image entries in cache hooks.
const keyType = "image"

// RenderFunc produces an image on a cache miss.
type RenderFunc func(ctx context.Context) (card.Image, error)

// Runner renders requests through the image cache.
//
// The Runner holds no per-request state. Multiple goroutines can safely use
// the same Runner.
type Runner struct {
	Cache     cache.Cache
	Renderer  *render.Renderer
	Namespace string
	Logger    *log.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewRunner creates a runner. If c is nil, a NullCache is used (caching
// disabled). If logger is nil, log output is discarded.
func NewRunner(c cache.Cache, r *render.Renderer, namespace string, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Cache:     c,
		Renderer:  r,
		Namespace: namespace,
		Logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether results are cached.
func (r *Runner) Enabled() bool {
	return !cache.IsNull(r.Cache)
}

// Execute validates req, then serves it from the cache or renders it.
// Validation errors are returned before the cache is consulted.
func (r *Runner) Execute(ctx context.Context, req card.Request) (Result, error) {
	job, err := r.Renderer.Prepare(req)
	if err != nil {
		return Result{}, err
	}
	in := Inputs{TemplateHash: job.Template.Hash, Options: job.Options, Props: job.Props}
	return r.GetOrRender(ctx, in, func(ctx context.Context) (card.Image, error) {
		return r.Renderer.Execute(ctx, job)
	})
}

// Invalidate removes the entry for req so the next Execute renders again.
func (r *Runner) Invalidate(ctx context.Context, req card.Request) error {
	job, err := r.Renderer.Prepare(req)
	if err != nil {
		return err
	}
	in := Inputs{TemplateHash: job.Template.Hash, Options: job.Options, Props: job.Props}
	return r.Cache.Delete(ctx, in.Fingerprint(r.Namespace))
}

type flight struct {
	entry  Entry
	cached bool
}

// GetOrRender returns the cached image for in, or calls fn once per
// fingerprint to produce and store it.
func (r *Runner) GetOrRender(ctx context.Context, in Inputs, fn RenderFunc) (Result, error) {
	fp := in.Fingerprint(r.Namespace)
	ttl := in.Options.CacheTTL.Std()
	hooks := observability.Cache()

	if !r.Enabled() {
		img, err := fn(ctx)
		if err != nil {
			return Result{}, err
		}
		return newEntry(fp, img, ttl, r.now()).result(false, false), nil
	}

	if e, ok := r.lookup(ctx, fp); ok {
		hooks.OnCacheHit(ctx, keyType)
		return e.result(true, false), nil
	}
	hooks.OnCacheMiss(ctx, keyType)

	ch := r.group.DoChan(fp, func() (any, error) {
		bg := context.WithoutCancel(ctx)
		// An earlier flight may have stored the entry after our lookup.
		if e, ok := r.lookup(bg, fp); ok {
			return flight{entry: e, cached: true}, nil
		}
		img, err := fn(bg)
		if err != nil {
			return nil, err
		}
		e := newEntry(fp, img, ttl, r.now())
		r.store(bg, e, ttl)
		return flight{entry: e}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		f := res.Val.(flight)
		return f.entry.result(f.cached, res.Shared), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Runner) lookup(ctx context.Context, fp string) (Entry, bool) {
	data, hit, err := r.Cache.Get(ctx, fp)
	if err != nil {
		r.Logger.Warn("cache read failed, rendering", "fingerprint", fp[:12], "error", err)
		observability.Cache().OnCacheError(ctx, "get", err)
		return Entry{}, false
	}
	if !hit {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil || e.Fingerprint != fp || len(e.Data) == 0 {
		r.Logger.Warn("discarding corrupt cache entry", "fingerprint", fp[:12])
		_ = r.Cache.Delete(ctx, fp)
		return Entry{}, false
	}
	if e.Expired(r.now()) {
		return Entry{}, false
	}
	return e, true
}

func (r *Runner) store(ctx context.Context, e Entry, ttl time.Duration) {
	data, err := json.Marshal(e)
	if err != nil {
		r.Logger.Warn("cache encode failed", "fingerprint", e.Fingerprint[:12], "error", err)
		return
	}
	if err := r.Cache.Set(ctx, e.Fingerprint, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "fingerprint", e.Fingerprint[:12], "error", err)
		observability.Cache().OnCacheError(ctx, "set", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(e.Data))
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
