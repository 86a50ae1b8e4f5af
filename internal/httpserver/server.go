package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/blackmichael/onchain-posts/internal/config"
	"github.com/blackmichael/onchain-posts/internal/contract"
	"github.com/blackmichael/onchain-posts/internal/controller"
	"github.com/blackmichael/onchain-posts/internal/domain"
	"github.com/blackmichael/onchain-posts/internal/render"
)

const socketPath = "/ws"

// Server is the HTTP server that serves the page, its WebSocket session
// endpoint and the RSS view of the posts.
type Server struct {
	cfg        *config.Config
	deps       controller.Deps
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a new HTTP server around the shared session deps.
func NewServer(cfg *config.Config, deps controller.Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Routes builds the router. It is exported for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withLogging(s.logger))

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
		r.Get("/", s.handlePage)
		r.Get("/feed.rss", s.handleFeed)
	})
	r.Get(socketPath, s.handleSocket)
	r.Get("/health", s.handleHealth)

	return r
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.deps.Renderer.Page(w, render.PageData{
		Title:      "Posts",
		Contract:   s.cfg.ContractAddress,
		SocketPath: socketPath,
	})
	if err != nil {
		s.logger.Error("failed to render page", "error", err)
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	account := domain.Account(r.URL.Query().Get("account"))
	if account == "" {
		account = domain.Account(s.cfg.ReaderAccount)
	}

	posts, err := s.deps.Contract.FetchAllPosts(r.Context(), account)
	if errors.Is(err, contract.ErrInvalidAccount) {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "account must be a hex address")
		return
	}
	if err != nil {
		s.logger.Error("failed to fetch posts for feed", "account", account, "error", err)
		writeError(w, http.StatusBadGateway, "UpstreamError", "failed to read posts")
		return
	}

	link := "http://" + r.Host + "/"
	rss, err := render.Feed(posts, account, link).ToRss()
	if err != nil {
		s.logger.Error("failed to encode feed", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to encode feed")
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write([]byte(rss))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
