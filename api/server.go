package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server is the webhook HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ServerConfig wires the server's handlers.
type ServerConfig struct {
	Addr    string
	Webhook *Webhook
	Health  *Health
	Logger  *slog.Logger
}

// NewServer builds the server with its routes and hardened timeouts.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Webhook == nil {
		return nil, errors.New("webhook handler is required")
	}
	if cfg.Health == nil {
		return nil, errors.New("health handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/telegram", cfg.Webhook.Telegram)
	mux.HandleFunc("POST /webhook/whatsapp", cfg.Webhook.WhatsApp)
	mux.HandleFunc("GET /webhook/info", cfg.Webhook.Info)
	mux.HandleFunc("GET /health", cfg.Health.Check)

	handler := Chain(mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      90 * time.Second, // answers wait on the model
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	s.logger.Info("webhook server stopped")
	return <-errCh
}
