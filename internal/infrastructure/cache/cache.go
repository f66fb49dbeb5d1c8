package cache

import (
	"github.com/redis/go-redis/v9"
)

// Open builds a Redis client from a redis:// URL.
func Open(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}
