// Package server exposes the render pipeline over HTTP.
//
// Endpoints:
//
//	POST /render     JSON {source, preamble, scale} -> image/svg+xml
//	GET  /toolchain  resolved toolchain family and argument vectors
//	GET  /healthz    liveness probe
//
// Each render produces a standalone SVG document containing a single
// merged group. Renders are serialised; failures are reported as JSON
// {code, message, request_id} with a status derived from the error code.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/inktex/pkg/buildinfo"
	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/hostdoc"
	"github.com/matzehuels/inktex/pkg/pipeline"
	"github.com/matzehuels/inktex/pkg/toolchain"
)

// maxBodyBytes bounds the JSON body of a render request.
const maxBodyBytes = 1 << 20

// Response headers describing a render.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderRenderID  = "X-Inktex-Render-Id"
	HeaderFamily    = "X-Inktex-Family"
	HeaderCached    = "X-Inktex-Cached"
)

// Resolver reports the toolchain renders will use.
type Resolver interface {
	Resolve(ctx context.Context) (toolchain.Spec, error)
}

// Server serves the render pipeline.
type Server struct {
	cfg      config.Config
	runner   *pipeline.Runner
	resolver Resolver
	logger   *log.Logger

	// mu serialises renders.
	mu sync.Mutex

	router chi.Router
}

// New creates a server and its routes.
func New(cfg config.Config, runner *pipeline.Runner, resolver Resolver, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{cfg: cfg, runner: runner, resolver: resolver, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Post("/render", s.handleRender)
	r.Get("/toolchain", s.handleToolchain)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on cfg.Server.Addr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", s.cfg.Server.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc := hostdoc.NewDocument(s.cfg)

	s.mu.Lock()
	res, err := s.runner.Execute(r.Context(), pipeline.Job{Target: doc, Request: opts.Request()})
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := doc.Bytes()
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "serialise document"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/svg+xml")
	h.Set(HeaderRenderID, res.RenderID)
	h.Set(HeaderFamily, res.Family)
	if res.Cached {
		h.Set(HeaderCached, "true")
	} else {
		h.Set(HeaderCached, "false")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type toolchainResponse struct {
	Family    string   `json:"family"`
	Compiler  []string `json:"compiler"`
	Converter []string `json:"converter"`
}

func (s *Server) handleToolchain(w http.ResponseWriter, r *http.Request) {
	spec, err := s.resolver.Resolve(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toolchainResponse{
		Family:    spec.Family,
		Compiler:  spec.Compiler,
		Converter: spec.Converter,
	})
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Current()})
}
