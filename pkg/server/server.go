// Package server serves link card images over HTTP.
//
// Routes:
//
//	GET /image/*                    card image for a route ("index" is "/")
//	GET /font/{name}/{weight}.{ext} font file (ttf or otf)
//	GET /debug.json                 resolved matrix and templates (debug only)
//	GET /healthz                    liveness
//
// The image path encodes the page route; an optional extension picks the
// output format, so /image/blog/hello.jpg is the JPEG card for /blog/hello.
// The Content-Type always reflects the produced format, which may differ
// from the requested one when the target has no bitmap encoder. Such
// responses carry X-Linkcard-Format-Downgraded: true.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/config"
	"github.com/matzehuels/linkcard/pkg/fonts"
	"github.com/matzehuels/linkcard/pkg/pipeline"
)

// Options holds the server's collaborators.
type Options struct {
	Config     *config.Config
	Runner     *pipeline.Runner
	Fonts      *fonts.Resolver
	Resolution compat.Resolution
	Phase      compat.Phase
	// Warnings are startup warnings reported by /debug.json.
	Warnings []string
	Logger   *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg      *config.Config
	runner   *pipeline.Runner
	fonts    *fonts.Resolver
	res      compat.Resolution
	phase    compat.Phase
	warnings []string
	logger   *log.Logger

	// known are the configured font descriptors served by /font.
	known  []card.FontDescriptor
	router chi.Router
	now    func() time.Time
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Fonts == nil {
		opts.Fonts = fonts.NewResolver(nil, opts.Logger)
	}
	s := &Server{
		cfg:      opts.Config,
		runner:   opts.Runner,
		fonts:    opts.Fonts,
		res:      opts.Resolution,
		phase:    opts.Phase,
		warnings: opts.Warnings,
		logger:   opts.Logger,
		known:    knownFonts(opts.Config),
		now:      time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/image", s.handleImage)
	r.Get("/image/*", s.handleImage)
	r.Get("/font/{name}/{file}", s.handleFont)
	if s.cfg.Debug {
		r.Get("/debug.json", s.handleDebug)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Server.Addr, "phase", s.phase, "preset", s.res.Preset)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// knownFonts collects the font descriptors the config references.
func knownFonts(cfg *config.Config) []card.FontDescriptor {
	out := []card.FontDescriptor{fonts.DefaultDescriptor()}
	routes := append([]string{"/"}, cfg.PageRoutes()...)
	for _, route := range routes {
		opts, err := cfg.Options(route)
		if err != nil {
			continue
		}
		out = append(out, opts.Fonts...)
	}
	return out
}
