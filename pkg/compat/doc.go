// Package compat computes which rendering engines are usable on a deployment
// target.
//
// # Overview
//
// A deployment target (preset) such as "vercel" or "cloudflare" constrains
// which engines can run in which execution phase: serverless functions
// cannot spawn a browser, edge runtimes cannot load native codecs. The static
// [Presets] table encodes those constraints. [Resolve] combines a preset with
// local environment [Probes] and configured overrides into an immutable
// [Matrix]:
//
//	res, err := compat.Resolve("vercel", probes, overrides)
//	if res.Matrix.Available(compat.PhaseRuntime, compat.EngineBrowser) {
//	    // screenshot mode is possible
//	}
//
// The matrix is fail-closed: a phase/engine pair is unavailable unless the
// preset lists it. Probes and overrides can only narrow the table, never
// widen it.
//
// # Reconciling defaults
//
// [Reconcile] adjusts default render options that the matrix cannot honor
// (a screenshot renderer without a browser, a JPEG default without the
// bitmap encoder) and reports each change as a warning instead of failing
// setup.
package compat
