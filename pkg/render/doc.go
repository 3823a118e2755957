// Package render turns image requests into encoded card images.
//
// # Overview
//
// A [Renderer] runs every request through the same steps:
//
//  1. [Renderer.Prepare] validates dimensions and looks up the template.
//     Both checks fail before any engine is touched.
//  2. Fonts are normalized for the deployment target and loaded.
//  3. The template is evaluated into a visual tree (SVG/HTML markup or DOT).
//  4. The dispatcher picks a strategy and invokes an engine.
//  5. Vector output goes through the raster pipeline; screenshot output is
//     transcoded directly.
//
// # Dispatcher
//
// The dispatcher is a small state machine:
//
//	select ──► render ──► complete
//	  │          │
//	  │          ▼
//	  │       fallback ──► render ──► complete
//	  │          │  (once)    │
//	  ▼          ▼            ▼
//	failed     failed       failed
//
// select chooses the requested mode, or the alternate mode when the
// compatibility matrix rules the requested one out. An engine failure
// (including a timeout) moves to fallback exactly once: the alternate mode
// when available, otherwise the same mode at reduced fidelity (default font
// only, emoji disabled). A second failure is terminal and reported as
// RENDER_FAILED.
//
// # Raster Pipeline
//
// SVG output is returned as is when SVG was requested. Otherwise the
// rasterizer produces PNG, which the encoder transcodes to the requested
// format. When the encoder is unavailable the PNG is returned and the image
// is tagged with the format actually produced; callers must use
// [card.Image.ContentType] rather than assume the requested format.
package render
