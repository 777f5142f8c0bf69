package config

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zachmann/go-utils/duration"
)

type cachingConf struct {
	RedisAddr     string                  `yaml:"redis_addr"`
	Username      string                  `yaml:"username"`
	Password      string                  `yaml:"password"`
	RedisDB       int                     `yaml:"redis_db"`
	Disabled      bool                    `yaml:"disabled"`
	StatsLifetime duration.DurationOption `yaml:"stats_lifetime"`
}

// RedisOptions returns the options for the redis cache or nil if no redis
// server is configured
func (c cachingConf) RedisOptions() *redis.Options {
	if c.RedisAddr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.RedisAddr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.RedisDB,
	}
}

var defaultCachingConf = cachingConf{
	StatsLifetime: duration.DurationOption(10 * time.Second),
}
