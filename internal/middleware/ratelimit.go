package middleware

import (
	"fmt"
	"time"

	"relay-api/internal/ctx"
	"relay-api/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RateLimiter struct {
	redis *redis.Client
	log   *zap.SugaredLogger
}

func NewRateLimiter(redisClient *redis.Client, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{redis: redisClient, log: log}
}

// Limit enforces the per-credential requests-per-minute quota using a fixed
// one minute window in redis. Runs after ExtractUser/RequireUser.
func (rl *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*ctx.Context)
		if c.User == nil {
			return next(c)
		}

		rpm := c.User.RPM
		if rpm <= 0 {
			rpm = shared.DefaultRPM
		}

		window := time.Now().Unix() / 60
		key := fmt.Sprintf("relay:v1:ratelimit:%s:%d", c.User.APIKey, window)

		rctx := c.Request().Context()
		count, err := rl.redis.Incr(rctx, key).Result()
		if err != nil {
			// Redis being down should not take inference down with it.
			c.Log.Warnw("Rate limit check failed, allowing request", "error", err)
			return next(c)
		}
		if count == 1 {
			rl.redis.Expire(rctx, key, time.Minute)
		}

		if count > int64(rpm) {
			c.LogValues.AddError(shared.ErrRateLimited)
			return c.JSON(429, shared.OpenAIError{
				Message: "rate limit exceeded",
				Object:  "error",
				Type:    "RateLimited",
				Code:    429,
			})
		}
		return next(c)
	}
}
