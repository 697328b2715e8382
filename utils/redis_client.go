package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oakandloom/storefront/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns a singleton Redis client, or nil when RedisHost is not configured.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		redisClient = NewRedisClient(config.Get())
	})
	return redisClient
}

// NewRedisClient builds a client from cfg. It returns nil when caching is disabled.
func NewRedisClient(cfg config.AppConfig) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	// a failed ping only logs; cache calls fall through to the database
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		Sugar.Warnf("redis ping failed addr=%s err=%v", rc.Options().Addr, err)
	}
	return rc
}
