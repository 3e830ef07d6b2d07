package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	corsAllowMethods  = "GET, POST, DELETE"
	corsAllowHeaders  = "Authorization, Content-Type, X-API-Key, X-Correlation-ID"
	corsExposeHeaders = "X-Correlation-ID, Retry-After"
)

// CORSConfig controls which browser origins may call the API. An entry of
// "*" admits any origin; credentials are only granted to listed origins.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsPolicy struct {
	origins     map[string]bool
	anyOrigin   bool
	credentials bool
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{origins: make(map[string]bool), credentials: cfg.AllowCredentials}
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[strings.ToLower(o)] = true
		}
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	return p
}

// allow reports whether origin is admitted and whether it may send credentials.
func (p *corsPolicy) allow(origin string) (allowed, credentials bool) {
	if origin == "" {
		return false, false
	}
	if p.origins[strings.ToLower(origin)] {
		return true, p.credentials
	}
	return p.anyOrigin, false
}

// CORSMiddleware answers preflight requests and decorates responses for
// admitted origins. Preflights from other origins are refused with 403.
func CORSMiddleware(next http.Handler, cfg CORSConfig) http.Handler {
	policy := newCORSPolicy(cfg)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")

		allowed, credentials := policy.allow(origin)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
			if credentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
		if !preflight {
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Add("Vary", "Access-Control-Request-Method")
		w.Header().Add("Vary", "Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
		if policy.maxAge != "" {
			w.Header().Set("Access-Control-Max-Age", policy.maxAge)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
