package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"github.com/workflowguard/workflowguard/infrastructure/http/response"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
)

// RequestObserver receives one observation per handled request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs every request and feeds observer, which may be nil.
// It is meant for router.Use so the matched route template is known.
func RequestLogger(log logger.Logger, observer RequestObserver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			if observer != nil {
				observer.ObserveRequest(r.Method, route, rec.status, duration)
			}

			fields := map[string]interface{}{
				"method":      r.Method,
				"route":       route,
				"status":      rec.status,
				"duration_ms": duration.Milliseconds(),
				"remote_ip":   getClientIP(r),
			}
			if rec.status >= http.StatusInternalServerError {
				log.Warn(r.Context(), "HTTP request failed", fields)
				return
			}
			log.Info(r.Context(), "HTTP request", fields)
		})
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "Panic recovered", nil, map[string]interface{}{
						"panic": rec,
						"stack": string(debug.Stack()),
						"path":  r.URL.Path,
					})
					response.InternalServerError(w, "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
