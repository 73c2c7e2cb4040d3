package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/api/middleware"
	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

const (
	maxRequestBody   = 1 << 20
	defaultListLimit = 25
)

// ProfileStore serves the Mozilla profiles. *profile.Store implements it.
type ProfileStore interface {
	Load(ctx context.Context, name string) (profile.Profile, error)
	Names(ctx context.Context) ([]string, error)
	Version(ctx context.Context) (string, error)
}

// JobService starts and tracks asynchronous audits. *JobManager implements it.
type JobService interface {
	StartJob(ctx context.Context, req AuditRequest) (*Job, error)
	GetJob(id string) *Job
	ListJobs(limit int) []Job
	Subscribe() (chan Job, func())
}

// ResultReader reads persisted audit results.
type ResultReader interface {
	FindByID(ctx context.Context, id string) (*audit.Result, error)
	List(ctx context.Context) ([]*audit.Result, error)
}

type Config struct {
	Profiles  ProfileStore
	Jobs      JobService
	Results   ResultReader // optional; enables /api/v1/results
	AuthToken string       // optional; required in X-Auth-Token when set
	Logger    *zap.Logger
	RateLimit int // Requests per second per IP (0 = disabled)
	RateBurst int // Burst size for rate limiter
	// TrustProxy keys the rate limiter on X-Forwarded-For. Enable only
	// behind a reverse proxy that sets the header.
	TrustProxy bool
}

type ProfilesResponse struct {
	Version  string   `json:"version"`
	Profiles []string `json:"profiles"`
}

type Server struct {
	cfg     Config
	router  chi.Router
	limiter *middleware.RateLimiter
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	srv := &Server{cfg: cfg}
	if cfg.RateLimit > 0 {
		srv.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
		srv.limiter.TrustProxy = cfg.TrustProxy
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes applies RequestID -> Logging -> RateLimit -> Auth -> Handler
func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, s.withLogging)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(s.rateLimited))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.withAuth)

			r.Get("/profiles", s.handleProfiles)
			r.Get("/profiles/{name}", s.handleProfile)

			r.Post("/audits", s.handleStartAudit)
			r.Get("/audits", s.handleListAudits)
			r.Get("/audits/{id}", s.handleAudit)
			r.Get("/audits-stream", s.handleAuditStream)

			if s.cfg.Results != nil {
				r.Get("/results", s.handleResults)
				r.Get("/results/{id}", s.handleResult)
			}
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.cfg.Profiles.Names(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	version, err := s.cfg.Profiles.Version(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ProfilesResponse{Version: version, Profiles: names})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.cfg.Profiles.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	job, err := s.cfg.Jobs.StartJob(r.Context(), req)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	w.Header().Set("Location", "/api/v1/audits/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Jobs.ListJobs(listLimit(r)))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	job := s.cfg.Jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("audit job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				s.requestLogger(r).Error("failed to marshal job", zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: job\ndata: ")) ||
				!s.writeStreamChunk(w, payload) ||
				!s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.cfg.Results.List(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	if limit := listLimit(r); limit < len(results) {
		results = results[:limit]
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Results.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sharedErrors.ErrProfileNotFound),
		errors.Is(err, sharedErrors.ErrResultNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharedErrors.ErrProfileSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, sharedErrors.ErrEmptyTarget),
		errors.Is(err, sharedErrors.ErrInvalidTarget):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request, ip string) {
	s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", ip))
	s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		s.cfg.Logger.Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError hides the details of internal errors from clients and logs
// them instead. A 503 names the unavailable dependency.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	switch {
	case status == http.StatusServiceUnavailable:
		s.requestLogger(r).Warn("dependency_unavailable", zap.Error(err))
		msg = sharedErrors.ErrProfileSourceUnavailable.Error()
	case status >= 500:
		s.requestLogger(r).Error("internal_server_error", zap.Error(err), zap.Int("status", status))
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	logger := s.cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("failed to write stream chunk", zap.Error(err))
		}
		return false
	}
	return true
}
