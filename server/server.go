// Package server exposes the assistant and the lead store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/xhad/de5chat/pkg/assistant"
	"github.com/xhad/de5chat/pkg/leads"
)

type Config struct {
	Port            int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server holds the services every handler needs.
type Server struct {
	config     Config
	assistant  *assistant.Assistant
	leads      leads.Store
	httpServer *http.Server
}

func New(config Config, asst *assistant.Assistant, leadStore leads.Store) *Server {
	if config.Port == 0 {
		config.Port = 8000
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 120 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		config:    config,
		assistant: asst,
		leads:     leadStore,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /leads", s.handleCreateLead)
	mux.HandleFunc("GET /leads", s.handleListLeads)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.withRequestID(s.withLogging(s.withRecover(s.withCORS(mux))))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("server stopped")
	return nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("error encoding JSON response: %v", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, detail string) {
	s.jsonResponse(w, status, map[string]string{"detail": detail})
}
