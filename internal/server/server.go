package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kgquery/internal/operations"
)

// sessionCookie carries the session ID between requests
const sessionCookie = "kgquery_session"

// maxBodyBytes bounds JSON and form request bodies
const maxBodyBytes = 1 << 20

// Server provides the browser UI and the HTTP API using the operations layer
type Server struct {
	addr     string
	token    string
	ops      *operations.Operations
	logger   *zap.Logger
	server   *http.Server
	origins  map[string]bool
	mu       sync.RWMutex
	started  time.Time
	lastPing time.Time
}

// NewServer creates a new HTTP server using operations
func NewServer(addr, token string, ops *operations.Operations, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	return &Server{
		addr:     addr,
		token:    token,
		ops:      ops,
		logger:   logger.Named("server"),
		started:  now,
		lastPing: now,
	}
}

// AllowOrigins lists the cross-origin callers the API answers. "*" admits
// any origin without credentials; with no origins only same-origin callers
// can read responses.
func (s *Server) AllowOrigins(origins ...string) {
	s.origins = make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			s.origins[o] = true
		}
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Browser UI
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/run", s.handleRunForm)
	mux.HandleFunc("/translate", s.handleTranslateForm)
	mux.HandleFunc("/rebuild", s.handleRebuildForm)
	mux.HandleFunc("/sample", s.handleSampleForm)
	mux.HandleFunc("/visualize", s.handleVisualize)

	// JSON API
	mux.Handle("/api/status", s.requireToken(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/api/query", s.requireToken(http.HandlerFunc(s.handleQuery)))
	mux.Handle("/api/translate", s.requireToken(http.HandlerFunc(s.handleTranslate)))
	mux.Handle("/api/rebuild", s.requireToken(http.HandlerFunc(s.handleRebuild)))
	mux.Handle("/api/graph", s.requireToken(http.HandlerFunc(s.handleGraph)))
	mux.Handle("/api/graph/export", s.requireToken(http.HandlerFunc(s.handleExport)))

	return s.logRequests(s.corsMiddleware(mux))
}

// Start begins listening for HTTP requests. It returns nil after Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("server starting", zap.String("url", "http://"+s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware grants cross-origin API access to the configured origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			switch {
			case origin == "":
			case origin != "*" && s.origins[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			case s.origins["*"]:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
			}

			// Handle preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// requireToken rejects API calls without the configured bearer token
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validateToken(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validateToken checks the authorization token
func (s *Server) validateToken(r *http.Request) bool {
	if s.token == "" {
		return true // No token required if not set
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

// session returns the caller's session, creating one and setting the cookie
// when the request carries none. API clients may pass X-Session-ID instead
// of the cookie.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*operations.Session, error) {
	id := r.Header.Get("X-Session-ID")
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}

	sess, err := s.ops.Sessions.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set("X-Session-ID", sess.ID)
	return sess, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
