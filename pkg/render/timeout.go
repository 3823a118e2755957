package render

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/matzehuels/linkcard/pkg/errors"
)

// Default engine call timeouts. Screenshots include page load and are
// bounded separately from vector conversion.
const (
	DefaultVectorTimeout     = 5 * time.Second
	DefaultScreenshotTimeout = 15 * time.Second
)

// withTimeout runs fn with a deadline. Engine calls cannot be preempted: on
// timeout fn keeps running in the background and its result is discarded.
// A panic in fn is returned as a render failure.
func withTimeout[T any](ctx context.Context, timeout time.Duration, what string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: errors.New(errors.ErrCodeRenderFailed, "%s panicked: %v", what, p)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.New(errors.ErrCodeTimeout, "%s timed out after %s", what, timeout)
		}
		return zero, ctx.Err()
	}
}
