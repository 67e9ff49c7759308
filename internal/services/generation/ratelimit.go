package generation

import (
	"context"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "generation_rate:"

// RateLimiter enforces a per-user fixed window on generation requests. It
// only throttles request volume; credit accounting stays with the ledger.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  perMinute,
		window: time.Minute,
	}
}

// Allow reports whether userID may issue another generation request in the
// current window. Redis unavailability degrades to allowing the request;
// throttling is a protection, not a billing invariant.
func (rl *RateLimiter) Allow(ctx context.Context, userID string) bool {
	if rl == nil || rl.client == nil || rl.limit <= 0 {
		return true
	}

	key := rateLimitKeyPrefix + userID
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		fiberlog.Warnf("Rate limit check failed for %s, allowing request: %v", userID, err)
		return true
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			fiberlog.Warnf("Failed to set rate limit expiry for %s: %v", userID, err)
		}
	}

	return count <= int64(rl.limit)
}
