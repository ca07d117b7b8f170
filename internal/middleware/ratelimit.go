package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/OlsenSM91/Open-Server-Shares/internal/metrics"
	"github.com/OlsenSM91/Open-Server-Shares/internal/models"
	"github.com/OlsenSM91/Open-Server-Shares/internal/services"
)

// RateLimitStoreType defines the type of rate limit store
type RateLimitStoreType string

const (
	// RateLimitStoreMemory uses in-memory storage (single instance only)
	RateLimitStoreMemory RateLimitStoreType = "memory"
	// RateLimitStoreRedis uses Redis storage for multi-instance deployments
	RateLimitStoreRedis RateLimitStoreType = "redis"
)

// RateLimitConfig holds the configuration for rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory store only

	StoreType RateLimitStoreType

	// Redis settings, used when StoreType is "redis". A non-nil
	// RedisClient takes precedence so limiters can share one client.
	RedisClient   *redis.Client
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Endpoint label for audit/metrics on limit hits
	Endpoint     string
	AuditService *services.AuditService
	Metrics      metrics.Recorder
}

// CreateRedisClient creates and pings a Redis client for rate limiting.
func CreateRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRateLimiter creates a rate limiting middleware with the configured
// store backend. Limit hits render the error page and are audited.
func NewRateLimiter(config RateLimitConfig) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  int64(config.RequestsPerMinute),
	}

	var store limiter.Store
	var err error

	switch config.StoreType {
	case RateLimitStoreRedis:
		client := config.RedisClient
		if client == nil {
			client, err = CreateRedisClient(config.RedisAddr, config.RedisPassword, config.RedisDB)
			if err != nil {
				return nil, err
			}
		}
		store, err = limiterRedis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:          "ratelimit",
			CleanUpInterval: config.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}

	case RateLimitStoreMemory:
		fallthrough
	default:
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		if config.Metrics != nil {
			config.Metrics.RecordRateLimited(config.Endpoint)
		}
		if config.AuditService != nil {
			config.AuditService.Log(services.AuditLogEntry{
				EventType:     models.EventRateLimitExceeded,
				Severity:      models.SeverityWarning,
				ActorIP:       c.ClientIP(),
				Success:       false,
				RequestPath:   c.Request.URL.Path,
				RequestMethod: c.Request.Method,
			})
		}
		c.HTML(http.StatusTooManyRequests, "error.html", gin.H{
			"Error":   "Rate Limit Exceeded",
			"Message": "Too many requests. Please try again later.",
		})
		c.Abort()
	})), nil
}
