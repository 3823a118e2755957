package render

import (
	"context"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/errors"
)

// rasterize converts an SVG document to the requested format. It returns
// the bytes and the format actually produced.
func (r *Renderer) rasterize(ctx context.Context, svg []byte, rc card.RenderContext, requested card.Format) ([]byte, card.Format, error) {
	if requested == card.FormatSVG {
		return svg, card.FormatSVG, nil
	}
	if !r.phaseAllows(compat.EngineRasterizer) {
		return nil, "", errors.New(errors.ErrCodeEngineUnavailable, "rasterizer unavailable in phase %s", r.cfg.Phase)
	}

	rast, err := r.cfg.Engines.Rasterizer(ctx)
	if err != nil {
		return nil, "", err
	}
	opts := rc.EngineOptions(card.EngineKeyRasterizer)
	png, err := withTimeout(ctx, r.cfg.VectorTimeout, "rasterize", func(ctx context.Context) ([]byte, error) {
		return rast.Rasterize(ctx, svg, rc.Width, rc.Height, rc.Fonts, opts)
	})
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, "", err
		}
		return nil, "", errors.Wrap(errors.ErrCodeRenderFailed, err, "rasterize %s", rc.Template.ID)
	}
	return r.encode(ctx, png, rc, requested)
}

// encode transcodes a PNG to the requested format. When the encoder cannot
// produce it, the PNG is returned and tagged as such.
func (r *Renderer) encode(ctx context.Context, png []byte, rc card.RenderContext, requested card.Format) ([]byte, card.Format, error) {
	if requested == card.NativeFormat {
		return png, card.NativeFormat, nil
	}
	downgrade := func(reason string, args ...any) ([]byte, card.Format, error) {
		r.logger.Warn("format downgraded", append([]any{
			"template", rc.Template.ID, "requested", requested, "produced", card.NativeFormat, "reason", reason}, args...)...)
		return png, card.NativeFormat, nil
	}

	if !requested.NeedsEncoder() {
		return downgrade("format not producible from a bitmap")
	}
	if !r.phaseAllows(compat.EngineEncoder) {
		return downgrade("encoder unavailable", "phase", r.cfg.Phase)
	}
	enc, err := r.cfg.Engines.Encoder(ctx)
	if err != nil {
		return downgrade("encoder failed to initialize", "error", err)
	}
	if !enc.Supports(requested) {
		return downgrade("encoder does not support format")
	}

	opts := rc.EngineOptions(card.EngineKeyEncoder)
	out, err := withTimeout(ctx, r.cfg.VectorTimeout, "encode", func(ctx context.Context) ([]byte, error) {
		return enc.Transcode(ctx, png, requested, opts)
	})
	if err != nil {
		return downgrade("transcode failed", "error", err)
	}
	return out, requested, nil
}
