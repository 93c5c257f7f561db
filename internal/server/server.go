// Package server is the HTTP surface: the operation dispatch endpoint,
// the resource reader, the self-description catalog, and the health and
// metrics endpoints, all served over chi
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fedigate/internal/engine"
	"fedigate/internal/platform/logger"
)

// Options configures the Server
type Options struct {
	Addr string
}

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	addr string
	eng  *engine.Engine
	srv  *http.Server
	log  logger.Logger
}

// New builds the server and mounts all routes
func New(eng *engine.Engine, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":4000"
	}
	s := &Server{
		addr: opts.Addr,
		eng:  eng,
		log:  *logger.Named("server"),
	}

	m := chi.NewRouter()
	m.Use(chimw.RequestID)
	m.Use(chimw.RealIP)
	m.Use(recoverJSON)
	m.Use(withPrincipal)
	m.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	}))

	m.Get("/healthz", s.handleHealth)
	m.Get("/metrics", s.handleMetrics)
	m.Get("/registry", s.handleRegistry)
	m.Get("/resources", s.handleResource)
	m.Post("/tools/{name}", s.handleTool)

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Addr returns the listening address
func (s *Server) Addr() string { return s.addr }

// Run starts the server and blocks
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.addr).Msg("http listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// withPrincipal derives the caller identity for rate limiting and audit
// from the remote address and threads it through the context together
// with the request id
func withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			principal = host
		}
		ctx := logger.WithRequest(r.Context(), chimw.GetReqID(r.Context()), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
