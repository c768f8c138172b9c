package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"egl-chat-backend/internal/config"
	"egl-chat-backend/internal/relay"
	"egl-chat-backend/internal/types"
)

// Dispatcher routes a validated chat request to one backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, req relay.Request) (string, error)
}

// LocalProbe reports whether the local inference server has a model installed.
type LocalProbe interface {
	HasModel(ctx context.Context, model string) (bool, error)
}

type Server struct {
	router     *chi.Mux
	cfg        config.Config
	dispatcher Dispatcher
	probe      LocalProbe
	logger     *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocalProbe enables the local backend section of /health.
func WithLocalProbe(p LocalProbe) Option {
	return func(s *Server) { s.probe = p }
}

func NewServer(cfg config.Config, d Dispatcher, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router = r
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/chat", s.handleChat)
	s.router.Options("/chat", s.handleChatOptions)
}

func (s *Server) Router() http.Handler { return s.router }

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, types.ErrorResponse{Status: code, Detail: detail})
}

// writeRelayError maps err onto the HTTP error taxonomy.
func (s *Server) writeRelayError(w http.ResponseWriter, err error) {
	code, detail := relay.Translate(err)
	s.writeError(w, code, detail)
}
