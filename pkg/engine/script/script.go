// Package script evaluates JavaScript card templates with QuickJS.
//
// A template defines a render function returning SVG or HTML markup:
//
//	function render(props, card) {
//	  return `<text x="64" y="120" font-size="64">${props.title}</text>`;
//	}
//
// Every evaluation gets its own QuickJS runtime bound to the evaluation's
// context. Evaluations run concurrently, and a cancelled evaluation is
// aborted inside the WASM module instead of running to completion.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fastschema/qjs"

	"github.com/matzehuels/linkcard/pkg/engine"
)

// Engine is a QuickJS-backed [engine.Script]. It is safe for concurrent use.
type Engine struct{}

// New compiles the QuickJS module once so later evaluations only
// instantiate it.
func New(ctx context.Context) (engine.Handle, error) {
	rt, err := newRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("start quickjs: %w", err)
	}
	closeRuntime(rt)
	return &Engine{}, nil
}

// newRuntime starts a runtime whose WASM calls abort once ctx is done. The
// compiled module and its runtime config are shared process-wide by qjs.
func newRuntime(ctx context.Context) (*qjs.Runtime, error) {
	return qjs.New(qjs.Option{Context: ctx, CloseOnContextDone: true, Stdout: io.Discard, Stderr: io.Discard})
}

// closeRuntime releases rt. Freeing an aborted runtime calls into a closed
// module, which qjs reports by panicking.
func closeRuntime(rt *qjs.Runtime) {
	defer func() { _ = recover() }()
	rt.Close()
}

// Eval runs source in an isolated function scope and returns the string
// produced by render(args...).
func (e *Engine) Eval(ctx context.Context, name, source string, args ...any) (out string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if args == nil {
		args = []any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	code := wrap(source, string(argsJSON))

	rt, err := newRuntime(ctx)
	if err != nil {
		return "", fmt.Errorf("start quickjs: %w", err)
	}
	defer func() {
		// qjs panics when a WASM call fails, including on cancellation.
		if p := recover(); p != nil {
			out = ""
			if cerr := ctx.Err(); cerr != nil {
				err = fmt.Errorf("eval %s: %w", name, cerr)
			} else {
				err = fmt.Errorf("eval %s: %v", name, p)
			}
		}
		closeRuntime(rt)
	}()

	val, err := rt.Context().Eval(name, qjs.Code(code))
	if err != nil {
		return "", fmt.Errorf("eval %s: %w", name, err)
	}
	defer val.Free()
	return val.String(), nil
}

// wrap scopes the template so that top-level declarations from one
// evaluation never leak into the next.
func wrap(source, argsJSON string) string {
	return "(function (__args) {\n" +
		source +
		"\n;if (typeof render !== 'function') { throw new Error('template must define a render function'); }" +
		"\nreturn String(render.apply(null, __args));\n})(" + argsJSON + ")"
}

// Close is a no-op; runtimes live for one evaluation.
func (e *Engine) Close() error { return nil }

var _ engine.Script = (*Engine)(nil)
