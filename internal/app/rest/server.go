package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/validation"
	"github.com/veridian-ai/textpipe/pkg/cache"
	"github.com/veridian-ai/textpipe/pkg/patterns/lifecycle"
)

// Services groups the adapters the HTTP surface exposes.
type Services struct {
	Generator   domain.TextGenerator
	Extractor   domain.TextExtractor
	Transcriber domain.Transcriber
}

// Server is the HTTP server exposing the service API.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger
	lis        net.Listener
}

// New creates the server and wires all routes.
func New(cfg *config.Config, svcs Services, recorder domain.AuditRecorder, classifier *apperrors.ErrorClassifier, logger *slog.Logger) *Server {
	h := &handler{
		svcs:       svcs,
		validator:  validation.NewRequestValidator(),
		recorder:   recorder,
		classifier: classifier,
		probeCache: cache.New(cache.WithDefaultTTL[string, bool](probeCacheTTL)),
		logger:     logger,
		version:    cfg.ServiceVersion,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/llm/generate", h.handleGenerate)
	mux.HandleFunc("GET /api/v1/llm/health", h.handleLLMHealth)
	mux.HandleFunc("POST /api/v1/ocr/extract", h.handleExtract)
	mux.HandleFunc("POST /api/v1/speech/transcribe", h.handleTranscribe)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleRoot)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      withRequestID(withProcessTime(withRequestLogging(logger, mux))),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Handler exposes the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listener and begins serving. Bind failures are returned
// synchronously; serve errors after that are logged.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.lis = lis

	go func() {
		s.logger.Info("http server listening", "addr", lis.Addr().String())
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.httpServer.Shutdown(ctx)
}

// Health reports whether the server is accepting connections.
func (s *Server) Health(ctx context.Context) lifecycle.HealthStatus {
	if s.lis == nil {
		return lifecycle.HealthStatus{Ready: false, Message: "listener not started"}
	}
	return lifecycle.HealthStatus{Ready: true}
}
