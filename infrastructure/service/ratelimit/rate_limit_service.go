package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/ports"
)

// rateLimitService keeps fixed-window counters and block markers in Redis.
type rateLimitService struct {
	redisClient *redis.Client
	logger      logger.Logger
}

// NewRateLimitService returns a Redis backed limiter, or a no-op one when
// client is nil.
func NewRateLimitService(client *redis.Client, log logger.Logger) ports.RateLimitService {
	if client == nil {
		return NewNoopRateLimitService()
	}
	return &rateLimitService{redisClient: client, logger: log}
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Allow counts one hit against key in a fixed window and reports whether the
// count is still within limit.
func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	counterKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := s.redisClient.Incr(ctx, counterKey).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// first hit opens the window
	if count == 1 {
		if err := s.redisClient.Expire(ctx, counterKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	allowed := count <= int64(limit)

	s.logger.Debug(ctx, "Rate limit check", map[string]interface{}{
		"key":     key,
		"current": count,
		"limit":   limit,
		"allowed": allowed,
	})

	return allowed, nil
}

// Block marks key as blocked for duration, recording why.
func (s *rateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := fmt.Sprintf("blocked:%s", key)

	blockData := map[string]interface{}{
		"reason":         reason,
		"blocked_at":     time.Now().Unix(),
		"duration":       duration.Seconds(),
		"correlation_id": logger.CorrelationID(ctx),
	}

	pipeline := s.redisClient.Pipeline()
	pipeline.HSet(ctx, blockKey, blockData)
	pipeline.Expire(ctx, blockKey, duration)

	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to block key: %w", err)
	}

	s.logger.Warn(ctx, "Key blocked due to rate limit exceeded", map[string]interface{}{
		"key":      key,
		"duration": duration.String(),
		"reason":   reason,
	})

	return nil
}

// IsBlocked reports whether a block marker for key is still live.
func (s *rateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	blockKey := fmt.Sprintf("blocked:%s", key)

	exists, err := s.redisClient.Exists(ctx, blockKey).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to check block status: %w", err)
	}

	return exists > 0, nil
}

// noopRateLimitService admits everything. Used when Redis is not configured.
type noopRateLimitService struct{}

func NewNoopRateLimitService() ports.RateLimitService {
	return &noopRateLimitService{}
}

func (n *noopRateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (n *noopRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return nil
}

func (n *noopRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, nil
}
