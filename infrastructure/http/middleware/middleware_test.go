package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

type stubTokenService struct {
	claims map[string]*ports.TokenClaims
}

func (s *stubTokenService) GenerateAccessToken(claims ports.TokenClaims) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubTokenService) ValidateAccessToken(token string) (*ports.TokenClaims, error) {
	if c, ok := s.claims[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type stubKeyVerifier struct{ key string }

func (s stubKeyVerifier) Verify(key string) bool { return key == s.key }

func claimsEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserClaims(r.Context())
		w.Header().Set("X-User", claims.UserID)
		w.Header().Set("X-Role", claims.Role)
		w.WriteHeader(http.StatusOK)
	})
}

func newTestAuth() *AuthMiddleware {
	tokens := &stubTokenService{claims: map[string]*ports.TokenClaims{
		"user-token":  {UserID: "u1", Role: ports.RoleUser},
		"admin-token": {UserID: "a1", Role: ports.RoleAdmin},
	}}
	return NewAuthMiddleware(tokens, stubKeyVerifier{key: "scheduler-key"}, logger.NewNopLogger())
}

func TestAuthenticate(t *testing.T) {
	auth := newTestAuth()

	tests := []struct {
		name           string
		headers        map[string]string
		expectedStatus int
		expectedUser   string
		expectedRole   string
	}{
		{"bearer token", map[string]string{"Authorization": "Bearer user-token"}, http.StatusOK, "u1", ports.RoleUser},
		{"scheduler key", map[string]string{APIKeyHeader: "scheduler-key"}, http.StatusOK, domain.SystemActor, ports.RoleScheduler},
		{"wrong key", map[string]string{APIKeyHeader: "nope"}, http.StatusUnauthorized, "", ""},
		{"missing header", map[string]string{}, http.StatusUnauthorized, "", ""},
		{"malformed header", map[string]string{"Authorization": "Token user-token"}, http.StatusUnauthorized, "", ""},
		{"invalid token", map[string]string{"Authorization": "Bearer bad"}, http.StatusUnauthorized, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/workflows/x/history", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			auth.Authenticate(claimsEcho()).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedUser, rec.Header().Get("X-User"))
			assert.Equal(t, tt.expectedRole, rec.Header().Get("X-Role"))
		})
	}
}

func TestAdminOnly(t *testing.T) {
	auth := newTestAuth()
	handler := auth.Authenticate(auth.AdminOnly(claimsEcho()))

	req := httptest.NewRequest("DELETE", "/api/v1/admin/workflows/x/versions/y", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("DELETE", "/api/v1/admin/workflows/x/versions/y", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type stubLimiter struct {
	allowed bool
	blocked bool
	err     error
	keys    []string
	blocks  int
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func (s *stubLimiter) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	s.blocks++
	return nil
}

func (s *stubLimiter) IsBlocked(ctx context.Context, key string) (bool, error) {
	return s.blocked, nil
}

func TestRateLimit(t *testing.T) {
	cfg := RateLimitConfig{Requests: 10, Window: time.Minute, BlockDuration: 5 * time.Minute}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("keys on user when authenticated", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true}
		mw := NewRateLimitMiddleware(limiter, cfg, logger.NewNopLogger())

		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(WithUserClaims(req.Context(), &ports.TokenClaims{UserID: "u1"}))
		rec := httptest.NewRecorder()
		mw.RateLimit(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"user:u1"}, limiter.keys)
	})

	t.Run("rejects and blocks over limit", func(t *testing.T) {
		limiter := &stubLimiter{allowed: false}
		mw := NewRateLimitMiddleware(limiter, cfg, logger.NewNopLogger())

		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		mw.RateLimit(ok).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Equal(t, []string{"ip:10.0.0.1"}, limiter.keys)
		assert.Equal(t, 1, limiter.blocks)
	})

	t.Run("blocked keys are rejected", func(t *testing.T) {
		limiter := &stubLimiter{allowed: true, blocked: true}
		mw := NewRateLimitMiddleware(limiter, cfg, logger.NewNopLogger())

		rec := httptest.NewRecorder()
		mw.RateLimit(ok).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Empty(t, limiter.keys)
	})

	t.Run("limiter errors fail open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		mw := NewRateLimitMiddleware(limiter, cfg, logger.NewNopLogger())

		rec := httptest.NewRecorder()
		mw.RateLimit(ok).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	handler := CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
	assert.Equal(t, rec.Header().Get(CorrelationIDHeader), seen)
}

type recordingObserver struct {
	route  string
	status int
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, duration time.Duration) {
	o.route = route
	o.status = status
}

func TestRequestLoggerAndRecovery(t *testing.T) {
	observer := &recordingObserver{}
	router := mux.NewRouter()
	router.Use(RequestLogger(logger.NewNopLogger(), observer), Recovery(logger.NewNopLogger()))
	router.HandleFunc("/api/v1/workflows/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}).Methods("GET")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/workflows/abc/history", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "/api/v1/workflows/{id}/history", observer.route)
	assert.Equal(t, http.StatusInternalServerError, observer.status)
}

func TestCORSMiddleware(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })

	tests := []struct {
		name              string
		config            CORSConfig
		method            string
		origin            string
		preflight         bool
		expectedStatus    int
		expectedOrigin    string
		expectCredentials bool
		expectNext        bool
	}{
		{
			name:              "preflight from listed origin",
			config:            CORSConfig{AllowedOrigins: []string{"https://app.example.com/"}, AllowCredentials: true, MaxAge: 10 * time.Minute},
			method:            "OPTIONS",
			origin:            "https://app.example.com",
			preflight:         true,
			expectedStatus:    http.StatusNoContent,
			expectedOrigin:    "https://app.example.com",
			expectCredentials: true,
		},
		{
			name:           "preflight from unknown origin is refused",
			config:         CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method:         "OPTIONS",
			origin:         "https://evil.example.com",
			preflight:      true,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "simple request from unknown origin passes through undecorated",
			config:         CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method:         "GET",
			origin:         "https://evil.example.com",
			expectedStatus: http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "wildcard admits any origin without credentials",
			config:         CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
			method:         "GET",
			origin:         "https://partner.example.org",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://partner.example.org",
			expectNext:     true,
		},
		{
			name:           "plain OPTIONS is not a preflight",
			config:         CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			method:         "OPTIONS",
			origin:         "https://app.example.com",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://app.example.com",
			expectNext:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/api/v1/workflows/wf-1/rollback", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
				req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Evil")
			}
			rec := httptest.NewRecorder()
			CORSMiddleware(next, tt.config).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.expectCredentials, rec.Header().Get("Access-Control-Allow-Credentials") == "true")
			assert.Equal(t, tt.expectNext, reached)
			assert.Contains(t, rec.Header().Values("Vary"), "Origin")
		})
	}
}

func TestCORSMiddleware_PreflightHeaders(t *testing.T) {
	handler := CORSMiddleware(http.NotFoundHandler(), CORSConfig{AllowedOrigins: []string{"https://app.example.com"}, MaxAge: 10 * time.Minute})

	req := httptest.NewRequest("OPTIONS", "/api/v1/admin/workflows/wf-1/versions/v-1", nil)
	req.Header.Set("Origin", "https://APP.example.com")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	req.Header.Set("Access-Control-Request-Headers", "X-Evil")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, DELETE", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Type, X-API-Key, X-Correlation-ID", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "X-Correlation-ID, Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
