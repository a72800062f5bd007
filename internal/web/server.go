// Package web serves the browser UI and the JSON API it drives:
// assistant CRUD, message exchange, conversation history, and backup
// import/export.
package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"assistanthub/internal/domain"
	"assistanthub/internal/exchange"
	"assistanthub/internal/metrics"
)

const maxBodySize = 1 << 20 // 1MB

//go:embed static/*
var staticFS embed.FS

// Server is the HTTP surface of AssistantHub.
type Server struct {
	host    string
	port    int
	store   domain.Store
	engine  *exchange.Engine
	logger  *slog.Logger
	server  *http.Server
	version string

	authEnabled  bool
	authUser     string
	authPassHash string
}

type ServerConfig struct {
	Host    string
	Port    int
	Store   domain.Store
	Engine  *exchange.Engine
	Logger  *slog.Logger
	Version string

	AuthEnabled  bool
	AuthUser     string
	AuthPassHash string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		store:        cfg.Store,
		engine:       cfg.Engine,
		logger:       cfg.Logger,
		version:      cfg.Version,
		authEnabled:  cfg.AuthEnabled,
		authUser:     cfg.AuthUser,
		authPassHash: cfg.AuthPassHash,
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("web UI started", "addr", "http://"+addr, "auth", s.authEnabled)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))

	mux.HandleFunc("GET /api/assistants", s.requireAuth(s.handleListAssistants))
	mux.HandleFunc("POST /api/assistants", s.requireAuth(s.handleCreateAssistant))
	mux.HandleFunc("PUT /api/assistants/{id}", s.requireAuth(s.handleUpdateAssistant))
	mux.HandleFunc("DELETE /api/assistants/{id}", s.requireAuth(s.handleDeleteAssistant))

	mux.HandleFunc("GET /api/assistants/{id}/messages", s.requireAuth(s.handleGetMessages))
	mux.HandleFunc("POST /api/assistants/{id}/messages", s.requireAuth(s.handleSend))
	mux.HandleFunc("DELETE /api/assistants/{id}/messages", s.requireAuth(s.handleClearMessages))

	mux.HandleFunc("GET /api/assistants/{id}/export", s.requireAuth(s.handleExportConversation))
	mux.HandleFunc("POST /api/assistants/{id}/import", s.requireAuth(s.handleImportConversation))

	mux.HandleFunc("GET /api/export", s.requireAuth(s.handleExportRegistry))
	mux.HandleFunc("POST /api/import", s.requireAuth(s.handleImportRegistry))

	// Public endpoints
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics", metrics.Collector.Handler())

	return mux
}

// requireAuth wraps a handler with HTTP Basic Auth when auth is enabled.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.authEnabled {
			next(rw, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !s.checkCredentials(user, pass) {
			rw.Header().Set("WWW-Authenticate", `Basic realm="AssistantHub"`)
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(rw, r)
	}
}

// checkCredentials verifies username and password against the stored
// SHA-256 hex hash.
func (s *Server) checkCredentials(user, pass string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(s.authUser)) != 1 {
		return false
	}
	hash := sha256.Sum256([]byte(pass))
	got := hex.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.authPassHash)) == 1
}

func (s *Server) handleIndex(rw http.ResponseWriter, r *http.Request) {
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		s.logger.Error("missing embedded index", "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Write(data)
}
