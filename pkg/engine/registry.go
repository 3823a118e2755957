package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/observability"
)

// DefaultInitTimeout bounds a single engine initialization.
const DefaultInitTimeout = 2 * time.Minute

// Registry lazily constructs and memoizes one handle per engine kind.
//
// The first Acquire for a kind starts initialization; concurrent callers
// that arrive before it finishes wait for the same attempt. A successful
// handle is kept for the registry's lifetime. A failed attempt is not
// remembered, so the next Acquire tries again.
type Registry struct {
	factories   Factories
	logger      *log.Logger
	initTimeout time.Duration

	mu      sync.Mutex
	handles map[Kind]Handle
	pending map[Kind]*initCall
	closed  bool
}

type initCall struct {
	done chan struct{}
	h    Handle
	err  error
}

// NewRegistry creates a registry over the given factories.
// If logger is nil, log output is discarded.
func NewRegistry(factories Factories, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Registry{
		factories:   factories,
		logger:      logger,
		initTimeout: DefaultInitTimeout,
		handles:     make(map[Kind]Handle),
		pending:     make(map[Kind]*initCall),
	}
}

// SetInitTimeout changes the initialization timeout for later attempts.
func (r *Registry) SetInitTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.initTimeout = d
	}
}

// Acquire returns the handle for kind, initializing it on first use.
//
// Initialization is detached from ctx: a caller that gives up does not abort
// an initialization other callers may be waiting on.
func (r *Registry) Acquire(ctx context.Context, kind Kind) (Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New(errors.ErrCodeEngineUnavailable, "engine registry closed")
	}
	if h, ok := r.handles[kind]; ok {
		r.mu.Unlock()
		return h, nil
	}
	call, ok := r.pending[kind]
	if !ok {
		factory, registered := r.factories[kind]
		if !registered || factory == nil {
			r.mu.Unlock()
			return nil, errors.New(errors.ErrCodeEngineUnavailable, "no %s engine registered", kind)
		}
		call = &initCall{done: make(chan struct{})}
		r.pending[kind] = call
		go r.initialize(kind, factory, call, r.initTimeout)
	}
	r.mu.Unlock()

	select {
	case <-call.done:
		return call.h, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) initialize(kind Kind, factory Factory, call *initCall, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	h, err := safeInit(ctx, factory)
	if err == nil && h == nil {
		err = fmt.Errorf("factory returned no handle")
	}
	duration := time.Since(start)
	observability.Engine().OnEngineInit(ctx, string(kind), duration, err)

	r.mu.Lock()
	delete(r.pending, kind)
	switch {
	case err != nil:
		call.err = errors.Wrap(errors.ErrCodeEngineUnavailable, err, "initialize %s engine", kind)
		r.logger.Warn("engine unavailable", "engine", kind, "err", err)
	case r.closed:
		_ = h.Close()
		call.err = errors.New(errors.ErrCodeEngineUnavailable, "engine registry closed")
	default:
		r.handles[kind] = h
		call.h = h
		r.logger.Debug("engine ready", "engine", kind, "duration", duration.Round(time.Millisecond))
	}
	r.mu.Unlock()
	close(call.done)
}

func safeInit(ctx context.Context, factory Factory) (h Handle, err error) {
	defer func() {
		if p := recover(); p != nil {
			h, err = nil, fmt.Errorf("panic during initialization: %v", p)
		}
	}()
	return factory(ctx)
}

// Loaded returns the kinds that currently hold an initialized handle.
func (r *Registry) Loaded() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, k := range Kinds() {
		if _, ok := r.handles[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Close releases every initialized handle. Later Acquire calls fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for kind, h := range r.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s engine: %w", kind, err)
		}
		delete(r.handles, kind)
	}
	return firstErr
}

// =============================================================================
// Typed accessors
// =============================================================================

func acquireAs[T Handle](ctx context.Context, r *Registry, kind Kind) (T, error) {
	var zero T
	h, err := r.Acquire(ctx, kind)
	if err != nil {
		return zero, err
	}
	t, ok := h.(T)
	if !ok {
		return zero, errors.New(errors.ErrCodeEngineUnavailable, "%s engine has unexpected type %T", kind, h)
	}
	return t, nil
}

// Script returns the JavaScript template engine.
func (r *Registry) Script(ctx context.Context) (Script, error) {
	return acquireAs[Script](ctx, r, KindScript)
}

// Vector returns the markup-to-SVG engine.
func (r *Registry) Vector(ctx context.Context) (Vector, error) {
	return acquireAs[Vector](ctx, r, KindVector)
}

// Rasterizer returns the SVG rasterizer.
func (r *Registry) Rasterizer(ctx context.Context) (Rasterizer, error) {
	return acquireAs[Rasterizer](ctx, r, KindRasterizer)
}

// Browser returns the headless browser engine.
func (r *Registry) Browser(ctx context.Context) (Browser, error) {
	return acquireAs[Browser](ctx, r, KindBrowser)
}

// Encoder returns the bitmap encoder.
func (r *Registry) Encoder(ctx context.Context) (Encoder, error) {
	return acquireAs[Encoder](ctx, r, KindEncoder)
}
