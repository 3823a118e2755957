// Package vector converts resolved visual trees to standalone SVG documents.
//
// Markup trees (SVG fragments or complete <svg> documents) are normalized to
// the requested dimensions and get the request's font faces embedded as
// @font-face rules. DOT trees are laid out with Graphviz first.
//
// Output is deterministic for identical trees and font manifests.
package vector

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/engine"
)

// Engine is the [engine.Vector] backend.
type Engine struct {
	mu sync.Mutex
	gv *graphviz.Graphviz
}

// New initializes Graphviz (a WASM module) for DOT trees.
func New(ctx context.Context) (engine.Handle, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	return &Engine{gv: gv}, nil
}

// RenderSVG converts rc's tree into an SVG document of rc.Width×rc.Height.
func (e *Engine) RenderSVG(ctx context.Context, rc card.RenderContext) ([]byte, error) {
	if rc.Template.Kind == card.TreeHTML {
		return nil, fmt.Errorf("template %s: html trees have no svg rendition", rc.Template.ID)
	}
	body := []byte(rc.Tree)
	if rc.Template.Kind == card.TreeDOT {
		svg, err := e.renderDOT(ctx, rc.Tree)
		if err != nil {
			return nil, err
		}
		body = svg
	}
	return Compose(body, rc), nil
}

func (e *Engine) renderDOT(ctx context.Context, dot string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := e.gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render DOT: %w", err)
	}
	return stripProlog(buf.Bytes()), nil
}

// Close releases Graphviz.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gv.Close()
}

var _ engine.Vector = (*Engine)(nil)

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([^"]*)"`)
	prologRe  = regexp.MustCompile(`(?s)^.*?(<svg)`)
)

// stripProlog removes the XML declaration, doctype and comments that
// Graphviz emits before the root element.
func stripProlog(svg []byte) []byte {
	return prologRe.ReplaceAll(svg, []byte("$1"))
}

// isDocument reports whether body is a complete SVG document rather than a
// fragment that merely contains nested <svg> elements.
func isDocument(body []byte) bool {
	t := bytes.TrimSpace(body)
	return bytes.HasPrefix(t, []byte("<svg")) || bytes.HasPrefix(t, []byte("<?xml")) || bytes.HasPrefix(t, []byte("<!"))
}

// Compose wraps or normalizes body into a standalone SVG of rc's size with
// rc's fonts embedded.
func Compose(body []byte, rc card.RenderContext) []byte {
	opts := rc.EngineOptions(card.EngineKeyVector)

	viewBox := fmt.Sprintf("0 0 %d %d", rc.Width, rc.Height)
	inner := body
	if open := svgTagRe.Find(body); open != nil && isDocument(body) {
		if m := viewBoxRe.FindSubmatch(open); m != nil {
			viewBox = string(m[1])
		}
		start := bytes.Index(body, open) + len(open)
		end := bytes.LastIndex(body, []byte("</svg>"))
		if end < start {
			end = len(body)
		}
		inner = body[start:end]
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="%s">`,
		rc.Width, rc.Height, viewBox)
	if css := FontFaceCSS(rc.Fonts); css != "" {
		b.WriteString("<defs><style>")
		b.WriteString(css)
		b.WriteString("</style></defs>")
	}
	if bg := opts.String("background", ""); bg != "" {
		fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, escapeAttr(bg))
	}
	b.Write(inner)
	b.WriteString("</svg>")
	return b.Bytes()
}

// FontFaceCSS returns @font-face rules embedding every face as a data URL.
// It is shared with the browser engine's HTML documents.
func FontFaceCSS(faces []card.FontFace) string {
	var b strings.Builder
	for _, f := range faces {
		mime := "font/ttf"
		format := f.Format
		if format == "" {
			format = "truetype"
		}
		if format == "opentype" {
			mime = "font/otf"
		}
		fmt.Fprintf(&b, `@font-face{font-family:"%s";font-weight:%d;font-style:normal;src:url(data:%s;base64,%s) format("%s");}`,
			f.Descriptor.Name, f.Descriptor.Weight, mime, base64.StdEncoding.EncodeToString(f.Data), format)
	}
	return b.String()
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}
