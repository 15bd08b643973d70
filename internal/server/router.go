// Package server exposes the create-file operation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hupe1980/filesaga"
	"github.com/hupe1980/filesaga/fault"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// maxBodyBytes bounds the request body. A create request is two short strings.
const maxBodyBytes = 64 << 10

// Handler handles create-file requests. *filesaga.Service satisfies it.
type Handler interface {
	Handle(ctx context.Context, req filesaga.Request) (filesaga.Response, error)
}

// Options configures the router.
type Options struct {
	// Logger receives request logs. Defaults to filesaga.NoopLogger().
	Logger *filesaga.Logger

	// RequestTimeout bounds each request. 0 disables the timeout.
	RequestTimeout time.Duration

	// MetricsHandler is mounted at MetricsPath if set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

var validate = validator.New()

// NewRouter creates the chi router.
//
// Routes:
//   - POST /v1/files - Create a file
//   - GET /healthz - Liveness probe
//   - GET <MetricsPath> - Prometheus metrics, if configured
func NewRouter(h Handler, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = filesaga.NoopLogger()
	}

	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.MetricsHandler)
	}

	files := &filesHandler{handler: h, logger: opts.Logger}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/files", files.Create)
	})

	return r
}

type filesHandler struct {
	handler Handler
	logger  *filesaga.Logger
}

// Create handles POST /v1/files.
func (f *filesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := f.logger.WithRequestID(middleware.GetReqID(ctx))

	var req filesaga.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, fault.Argument("invalid request body"))
		return
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, fault.Argument(validationMessage(err)))
		return
	}

	logger = logger.WithUser(req.UserID)

	resp, err := f.handler.Handle(ctx, req)
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "create file request failed",
				"path", req.FilePath,
				"transient", fault.IsTransient(err),
				"error", err,
				"cause", errors.Unwrap(err),
			)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// statusOf maps an error kind to an HTTP status code.
func statusOf(err error) int {
	switch fault.KindOf(err) {
	case fault.KindArgument:
		return http.StatusBadRequest
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if fault.KindOf(err) == fault.KindUnknown {
		msg = fault.Server("internal server error", nil).Error()
	}
	writeJSON(w, statusOf(err), ErrorResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return "missing field " + validationErrs[0].Field()
	}
	return "invalid request"
}

// requestID takes the request ID from the inbound header or generates one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *filesaga.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logArgs := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			}

			// Probes are logged at DEBUG to keep the logs readable
			if r.URL.Path == "/healthz" {
				logger.DebugContext(r.Context(), "request completed", logArgs...)
				return
			}
			logger.InfoContext(r.Context(), "request completed", logArgs...)
		})
	}
}
