// Package httpapi exposes caption sessions over HTTP. A browser-side
// collaborator pushes caption snapshots and playback state and follows the
// overlay through a Server-Sent Events stream.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MimeLyc/live-sub-translator/internal/provider"
)

const maxBodyBytes = 1 << 20

type Server struct {
	registry   *Registry
	translator provider.Translator

	corsOrigins   []string
	defaultTarget string
	sourceLang    string
	nextSweep     func() time.Time
	heartbeat     time.Duration

	router *chi.Mux

	mu       sync.Mutex
	server   *http.Server
	shutdown bool
}

type Option func(*Server)

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithDefaultTarget sets the target language of one-shot translations that
// do not name one.
func WithDefaultTarget(lang string) Option {
	return func(s *Server) {
		if lang != "" {
			s.defaultTarget = lang
		}
	}
}

func WithSourceLanguage(lang string) Option {
	return func(s *Server) {
		if lang != "" {
			s.sourceLang = lang
		}
	}
}

// WithNextSweep reports when the next maintenance sweep runs.
func WithNextSweep(next func() time.Time) Option {
	return func(s *Server) {
		s.nextSweep = next
	}
}

func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

func NewServer(registry *Registry, translator provider.Translator, opts ...Option) *Server {
	s := &Server{
		registry:      registry,
		translator:    translator,
		defaultTarget: "zh-CN",
		sourceLang:    provider.AutoDetect,
		heartbeat:     15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(s.corsOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(chimw.RequestSize(maxBodyBytes))

			r.Post("/translate", s.handleTranslate)

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings/{key}", s.handlePutSetting)

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/{id}", s.handleSessionStatus)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
			r.Post("/sessions/{id}/captions", s.handleCaptions)
			r.Post("/sessions/{id}/translate", s.handleSessionTranslate)
			r.Post("/sessions/{id}/playback", s.handlePlayback)
		})

		r.Get("/sessions/{id}/stream", s.handleStream)
	})

	s.router = r
}
