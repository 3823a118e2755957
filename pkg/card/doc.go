// Package card defines the data model shared by every stage of the link card
// render pipeline.
//
// # Overview
//
// A link card is rendered from a [Request]: a page route, the fully merged
// [RenderOptions] for that page, and the template props. The render package
// turns a request into an immutable [RenderContext] (template reference,
// resolved visual tree, loaded fonts, dimensions) and produces an [Image]
// carrying the bytes and the format that was actually produced.
//
// # Formats
//
// The rasterizer natively emits PNG. Every other bitmap [Format] needs the
// bitmap encoder; when it is unavailable the pipeline produces PNG instead and
// marks the image as downgraded. Callers must use [Image.ContentType], never
// the requested format:
//
//	img, err := renderer.Render(ctx, req)
//	w.Header().Set("Content-Type", img.ContentType())
//
// # Fonts
//
// A [FontDescriptor] names a family and weight and carries at most one
// source. The shorthand "Inter:700" decodes to a remote descriptor:
//
//	d, _ := card.ParseFontShorthand("Inter:700")
//	// d.Name == "Inter", d.Weight == 700, d.Remote == "Inter:700"
package card
