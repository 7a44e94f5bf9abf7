package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recordbook/internal/ratelimit"
	"recordbook/internal/util"
	"recordbook/pkg/queue"
	"recordbook/pkg/storage"
	"recordbook/services/records/internal/app"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultEventLimit   = 50
	maxEventLimit       = 500
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App       *app.App
	Documents storage.DocumentSource
	// WriteLimiter is optional; nil disables rate limiting of mutating routes.
	WriteLimiter   *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxBodyBytes   int64
}

// Server exposes HTTP endpoints for the records service.
type Server struct {
	app          *app.App
	documents    storage.DocumentSource
	writeLimiter *ratelimit.FixedWindowLimiter
	trusted      *util.TrustedProxies
	mux          *http.ServeMux
	maxBodyBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Documents == nil {
		return nil, errors.New("server: document source is required")
	}
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{
		app:          cfg.App,
		documents:    cfg.Documents,
		writeLimiter: cfg.WriteLimiter,
		trusted:      cfg.TrustedProxies,
		mux:          http.NewServeMux(),
		maxBodyBytes: maxBodyBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("records", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.HandleFunc("/", s.handleIndex)

	s.mux.Handle("/upload_data", s.withWriteLimit("create", writeError, s.handleUpload))
	s.mux.HandleFunc("/show_one", s.handleShowOne)
	s.mux.HandleFunc("/show_many", s.handleShowMany)
	s.mux.HandleFunc("/filtered", s.handleFiltered)
	s.mux.Handle("/delete/", s.withWriteLimit("delete", writeFailure, s.handleDelete))
	s.mux.Handle("/update/", s.withWriteLimit("update", writeFailure, s.handleUpdate))
	s.mux.HandleFunc("/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ready(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Warn("store not ready", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	doc, info, err := s.documents.Open(r.Context(), "index.html")
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			notFound(w, "not found")
			return
		}
		util.LoggerFromContext(r.Context()).Error("open index document failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer doc.Close()
	util.AllowDocument(w)
	w.Header().Set("Content-Type", info.ContentType)
	http.ServeContent(w, r, "index.html", info.ModTime, doc)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.app.EventsEnabled() {
		notFound(w, "not found")
		return
	}
	limit := int64(defaultEventLimit)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	events, err := s.app.RecentEvents(r.Context(), limit)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("list record events failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []queue.RecordEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// withWriteLimit applies the shared write quota, keyed by route and client IP.
// Rejections are written with the route's own failure shape.
func (s *Server) withWriteLimit(route string, fail failureWriter, next http.HandlerFunc) http.Handler {
	if s.writeLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		decision := s.writeLimiter.Hit(r.Context(), util.ClientKey(route, r, s.trusted))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.writeLimiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
			fail(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	})
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// resultResponse is the envelope for every mutating route and every error.
type resultResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// failureWriter writes one failure envelope; writeError and writeFailure differ only in the key.
type failureWriter func(w http.ResponseWriter, status int, msg string)

// writeError reports a failure under the "error" key.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, resultResponse{
		Error:     msg,
		Code:      errorCodeForRecord(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

// writeFailure reports a failure under the "message" key, the shape used by delete and update.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, resultResponse{
		Message:   msg,
		Code:      errorCodeForRecord(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

func errorCodeForRecord(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch message {
	case strings.ToLower(app.ErrStoreUnavailable.Error()):
		return "STORE_UNAVAILABLE"
	case strings.ToLower(app.ErrInvalidID.Error()):
		return "RECORD_INVALID_ID"
	case strings.ToLower(app.ErrNotFound.Error()):
		return "RECORD_NOT_FOUND"
	case strings.ToLower(app.ErrNotModified.Error()):
		return "RECORD_NOT_MODIFIED"
	case "invalid request body":
		return "RECORD_INVALID_REQUEST"
	case "too many requests":
		return "RATE_LIMITED"
	case "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "RECORD_INVALID_REQUEST"
	case http.StatusNotFound:
		return "RECORD_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
