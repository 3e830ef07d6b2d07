package ports

import (
	"context"
	"time"
)

// TokenClaims are the authenticated caller's identity
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Plan   string `json:"plan"`
}

const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleScheduler = "scheduler"
)

// TokenService issues and validates access tokens
type TokenService interface {
	GenerateAccessToken(claims TokenClaims) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
}

// APIKeyVerifier authenticates machine callers such as the backup scheduler
type APIKeyVerifier interface {
	Verify(key string) bool
}

// RateLimitService defines rate limiting behavior used by middleware
type RateLimitService interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Block(ctx context.Context, key string, duration time.Duration, reason string) error
	IsBlocked(ctx context.Context, key string) (bool, error)
}

// FeatureGate answers plan-based feature checks
type FeatureGate interface {
	PlanAllows(plan, feature string) bool
}
