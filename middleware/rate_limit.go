package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"gpodo/utils"
)

// OTPRateLimiter caps code requests per client IP and email. storage may
// be nil, in which case the limiter keeps counters in memory.
func OTPRateLimiter(max int, storage fiber.Storage) fiber.Handler {
	return otpLimiter("otp", max, storage, "Too many code requests. Please wait before trying again.")
}

// OTPVerifyRateLimiter caps verification attempts per client IP and email
// across resends; the per-code attempt counter still applies.
func OTPVerifyRateLimiter(max int, storage fiber.Storage) fiber.Handler {
	return otpLimiter("otp-verify", max, storage, "Too many verification attempts. Please wait before trying again.")
}

func otpLimiter(scope string, max int, storage fiber.Storage, message string) fiber.Handler {
	if max <= 0 {
		max = 5
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			var body struct {
				Email string `json:"email"`
			}
			_ = c.BodyParser(&body)
			return utils.GenerateRateLimitKey(scope, c.IP()+":"+normalizeEmail(body.Email))
		},
		LimitReached: func(c *fiber.Ctx) error {
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"scope":      scope,
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get("User-Agent"),
			})

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       message,
				"retry_after": "15 minutes",
			})
		},
		Storage: storage,
	})
}

// normalizeEmail matches the lookup the auth handlers do, so case
// variants of one address share a bucket.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RedisStorage implements fiber.Storage for Redis
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (r *RedisStorage) Get(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if len(key) == 0 || len(val) == 0 {
		return nil
	}
	return r.client.Set(context.Background(), key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

func (r *RedisStorage) Reset() error {
	return r.client.FlushDB(context.Background()).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
