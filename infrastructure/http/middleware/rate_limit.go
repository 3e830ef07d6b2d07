package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/workflowguard/workflowguard/infrastructure/http/response"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/ports"
)

type RateLimitConfig struct {
	Requests      int
	Window        time.Duration
	BlockDuration time.Duration
}

type RateLimitMiddleware struct {
	rateLimitService ports.RateLimitService
	config           RateLimitConfig
	logger           logger.Logger
}

func NewRateLimitMiddleware(rateLimitService ports.RateLimitService, config RateLimitConfig, logger logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		config:           config,
		logger:           logger,
	}
}

// RateLimit keys on the authenticated user when present, otherwise on the
// client IP. Limiter errors fail open.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitService == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := getClientIP(r)

		key := fmt.Sprintf("ip:%s", clientIP)
		if claims := GetUserClaims(ctx); claims != nil {
			key = fmt.Sprintf("user:%s", claims.UserID)
		}

		isBlocked, err := m.rateLimitService.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		}
		if isBlocked {
			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_blocked", "MEDIUM", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(m.config.BlockDuration.Seconds())))
			response.TooManyRequests(w, "Too many requests. Please try again later.")
			return
		}

		allowed, err := m.rateLimitService.Allow(ctx, key, m.config.Requests, m.config.Window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{"key": key})
			allowed = true
		}

		if !allowed {
			if m.config.BlockDuration > 0 {
				if err := m.rateLimitService.Block(ctx, key, m.config.BlockDuration, "Rate limit exceeded"); err != nil {
					m.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
				}
			}

			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_exceeded", "HIGH", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})

			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(m.config.Window.Seconds())))
			response.TooManyRequests(w, "Too many requests. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
