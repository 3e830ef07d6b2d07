package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/workflowguard/workflowguard/infrastructure/http/response"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

type contextKey string

const (
	AuthUserKey contextKey = "auth_user"

	APIKeyHeader = "X-API-Key"
)

type AuthMiddleware struct {
	tokenService ports.TokenService
	apiKeys      ports.APIKeyVerifier
	logger       logger.Logger
}

// NewAuthMiddleware creates the middleware. apiKeys may be nil, in which case
// only bearer tokens are accepted.
func NewAuthMiddleware(tokenService ports.TokenService, apiKeys ports.APIKeyVerifier, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		apiKeys:      apiKeys,
		logger:       log,
	}
}

// Authenticate accepts a bearer access token, or the scheduler API key which
// authenticates as the system actor.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if key := r.Header.Get(APIKeyHeader); key != "" {
			if m.apiKeys == nil || !m.apiKeys.Verify(key) {
				logger.LogSecurityEvent(ctx, m.logger, "invalid_api_key", "MEDIUM", map[string]interface{}{
					"path": r.URL.Path,
				})
				response.Unauthorized(w, "Invalid API key")
				return
			}
			claims := &ports.TokenClaims{UserID: domain.SystemActor, Role: ports.RoleScheduler}
			next.ServeHTTP(w, r.WithContext(WithUserClaims(ctx, claims)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(w, "Invalid authorization header format")
			return
		}

		token := parts[1]
		if token == "" {
			response.Unauthorized(w, "Token cannot be empty")
			return
		}

		claims, err := m.tokenService.ValidateAccessToken(token)
		if err != nil {
			logger.LogSecurityEvent(ctx, m.logger, "invalid_token", "LOW", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			response.Unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserClaims(ctx, claims)))
	})
}

// AdminOnly must run after Authenticate.
func (m *AuthMiddleware) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserClaims(r.Context())
		if claims == nil {
			response.Unauthorized(w, "User not authenticated")
			return
		}

		if claims.Role != ports.RoleAdmin {
			logger.LogSecurityEvent(r.Context(), m.logger, "admin_access_denied", "MEDIUM", map[string]interface{}{
				"user_id": claims.UserID,
				"path":    r.URL.Path,
			})
			response.Forbidden(w, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func WithUserClaims(ctx context.Context, claims *ports.TokenClaims) context.Context {
	return context.WithValue(ctx, AuthUserKey, claims)
}

// GetUserClaims retrieves user claims from context
func GetUserClaims(ctx context.Context) *ports.TokenClaims {
	if claims, ok := ctx.Value(AuthUserKey).(*ports.TokenClaims); ok {
		return claims
	}
	return nil
}
