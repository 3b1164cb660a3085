package web

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"field-dispatch/internal/config"
	"field-dispatch/internal/core"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	logEntryKey  contextKey = "log_entry"
)

// Header values copied into the context must be short, printable identifiers.
var safeHeaderValue = regexp.MustCompile(`^[a-zA-Z0-9\-_.@]{1,64}$`)

// requestIDFromContext returns the request ID from ctx, or empty string.
func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// logFromContext returns the request-scoped log entry, falling back to base.
func logFromContext(ctx context.Context, base logrus.FieldLogger) logrus.FieldLogger {
	if e, ok := ctx.Value(logEntryKey).(*logrus.Entry); ok {
		return e
	}
	return base
}

// RequestContext tags each request with an ID and the dispatcher acting on it.
//
// X-Request-ID is echoed when safe, otherwise replaced with a UUID. X-Actor becomes
// the engine actor (recorded on stock movements) unless the body names one. Both
// are attached to a request-scoped log entry used by Logger and Recoverer.
func RequestContext(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if !safeHeaderValue.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			fields := logrus.Fields{"request_id": id}
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			if actor := r.Header.Get("X-Actor"); safeHeaderValue.MatchString(actor) {
				ctx = core.ContextWithActor(ctx, actor)
				fields["actor"] = actor
			}
			ctx = context.WithValue(ctx, logEntryKey, log.WithFields(fields))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logger writes one access log line per request.
func Logger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := logFromContext(r.Context(), log).WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case rec.status >= http.StatusInternalServerError:
				entry.Error("request")
			case rec.status >= http.StatusBadRequest:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
		})
	}
}

// Recoverer turns a handler panic into a logged 500.
func Recoverer(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					config.LogError(logFromContext(r.Context(), log), "web", "Recoverer", "panic",
						logrus.Fields{"path": r.URL.Path}, fmt.Errorf("panic: %v", rv))
					writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers only for origins listed in ALLOWED_ORIGINS. An empty list disables it.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	allowed := originSet(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Actor")
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					h.Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			set[o] = struct{}{}
		}
	}
	return set
}

// statusRecorder captures the status code and body size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestBodyLimit caps request bodies at maxBytes; decodeJSON reports overflow as 413.
func RequestBodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
