package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/workflowguard/workflowguard/internal/ports"
)

type JWTService struct {
	hmacSecret []byte
	ttl        time.Duration
	issuer     string
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const tokenIssuer = "workflowguard"

// NewJWTService creates an HS256 token service.
func NewJWTService(secret, algorithm string, ttl time.Duration) (*JWTService, error) {
	if algorithm != "HS256" {
		return nil, fmt.Errorf("unsupported JWT algorithm: %s", algorithm)
	}
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &JWTService{hmacSecret: []byte(secret), ttl: ttl, issuer: tokenIssuer}, nil
}

func (s *JWTService) GenerateAccessToken(claims ports.TokenClaims) (string, error) {
	now := time.Now()
	tokenClaims := jwt.MapClaims{
		"user_id": claims.UserID,
		"email":   claims.Email,
		"role":    claims.Role,
		"plan":    claims.Plan,
		"iss":     s.issuer,
		"exp":     now.Add(s.ttl).Unix(),
		"iat":     now.Unix(),
		"type":    "access",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)

	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

func (s *JWTService) ValidateAccessToken(tokenString string) (*ports.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.hmacSecret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, s.handleValidationError(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	plan, _ := claims["plan"].(string)

	return &ports.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Plan:   plan,
	}, nil
}

func (s *JWTService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
