package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/linkcard/pkg/buildinfo"
	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/config"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/fonts"
)

// Response headers set on images.
const (
	HeaderDowngraded = "X-Linkcard-Format-Downgraded"
	HeaderCache      = "X-Linkcard-Cache"
	HeaderRenderer   = "X-Linkcard-Renderer"
)

// fontMaxAge is the client cache lifetime of font files.
const fontMaxAge = 365 * 24 * 60 * 60

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseImagePath splits "blog/hello.jpg" into the route and the format picked
// by the extension. Extensions that are not formats stay part of the route.
func parseImagePath(p string) (string, card.Format, error) {
	var format card.Format
	if ext := path.Ext(p); ext != "" {
		if f, err := card.ParseFormat(ext); err == nil {
			format = f
			p = strings.TrimSuffix(p, ext)
		}
	}
	route, err := config.NormalizeRoute(p)
	return route, format, err
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	route, format, err := parseImagePath(chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var extra map[string]any
	if s.cfg.Server.QueryProps {
		extra = queryProps(r.URL.Query())
	}
	req, err := s.cfg.Request(route, extra)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if format != "" {
		req.Options = req.Options.WithFormat(format)
	}

	res, err := s.runner.Execute(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	etag := strconv.Quote(res.Fingerprint)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(res.MaxAge(s.now()).Seconds())))
	h.Set(HeaderDowngraded, strconv.FormatBool(res.Downgraded()))
	h.Set(HeaderRenderer, string(res.Mode))
	if res.Cached {
		h.Set(HeaderCache, "hit")
	} else {
		h.Set(HeaderCache, "miss")
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", res.ContentType())
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func queryProps(q url.Values) map[string]any {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]any, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func (s *Server) handleFont(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidFont, "invalid font name"))
		return
	}
	weightStr, ext, _ := strings.Cut(chi.URLParam(r, "file"), ".")
	weight, err := strconv.Atoi(weightStr)
	if err != nil {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidFont, "invalid font weight %q", weightStr))
		return
	}

	var want, contentType string
	switch strings.ToLower(ext) {
	case "ttf":
		want, contentType = fonts.FormatTrueType, "font/ttf"
	case "otf":
		want, contentType = fonts.FormatOpenType, "font/otf"
	default:
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "unsupported font extension %q", ext))
		return
	}

	desc, err := s.lookupFont(name, weight)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	face, err := s.fonts.Load(r.Context(), desc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if face.Format != want {
		s.writeError(w, r, errors.New(errors.ErrCodeFontNotFound, "font %s is %s, not %s", desc.Key(), face.Format, ext))
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(face.Data)))
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", fontMaxAge))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(face.Data)
}

// lookupFont finds a configured descriptor by family and weight. Unknown
// families are fetched remotely when the phase allows it.
func (s *Server) lookupFont(name string, weight int) (card.FontDescriptor, error) {
	for _, d := range s.known {
		if strings.EqualFold(d.Name, name) && d.Weight == weight {
			return d, nil
		}
	}
	if !s.res.Matrix.Available(s.phase, compat.EngineFetch) {
		return card.FontDescriptor{}, errors.New(errors.ErrCodeFontNotFound, "font %s:%d is not configured", name, weight)
	}
	return card.ParseFontShorthand(fmt.Sprintf("%s:%d", name, weight))
}

// debugInfo is the /debug.json document.
type debugInfo struct {
	Version   string        `json:"version"`
	Namespace string        `json:"namespace"`
	Preset    string        `json:"preset"`
	Phase     compat.Phase  `json:"phase"`
	Matrix    compat.Matrix `json:"matrix"`
	Templates any           `json:"templates"`
	Pages     []string      `json:"pages"`
	Cache     bool          `json:"cache_enabled"`
	Warnings  []string      `json:"warnings"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	renderer := s.runner.Renderer
	info := debugInfo{
		Version:   buildinfo.Version,
		Namespace: s.runner.Namespace,
		Preset:    s.res.Preset,
		Phase:     s.phase,
		Matrix:    s.res.Matrix,
		Templates: renderer.Templates().List(),
		Pages:     s.cfg.PageRoutes(),
		Cache:     s.runner.Enabled(),
		Warnings:  append([]string{}, s.warnings...),
	}
	if info.Namespace == "" {
		info.Namespace = buildinfo.Namespace()
	}
	writeJSON(w, http.StatusOK, info)
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if stderrors.Is(err, context.Canceled) {
		// Client went away.
		return
	}
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Code: code, Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
