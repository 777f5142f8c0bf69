package config

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/keygate/keygate"
	"github.com/keygate/keygate/service"
)

type loginConf struct {
	Path        string `yaml:"path"`
	LogNotFound bool   `yaml:"log_not_found"`
	MaxRetries  int    `yaml:"max_retries"`
	RecentLogs  int    `yaml:"recent_logs"`
}

func (c *loginConf) validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return errors.Errorf("error in login conf: path '%s' must start with '/'", c.Path)
	}
	if c.MaxRetries < 0 {
		return errors.New("error in login conf: max_retries must not be negative")
	}
	if c.RecentLogs <= 0 {
		return errors.New("error in login conf: recent_logs must be positive")
	}
	return nil
}

var defaultLoginConf = loginConf{
	Path:        keygate.DefaultLoginPath,
	LogNotFound: true,
	MaxRetries:  3,
	RecentLogs:  10,
}

type keysConf struct {
	MaxQuantity           int `yaml:"max_quantity"`
	MaxExpirationDays     int `yaml:"max_expiration_days"`
	DefaultExpirationDays int `yaml:"default_expiration_days"`
}

func (c *keysConf) validate() error {
	if c.MaxQuantity <= 0 || c.MaxExpirationDays <= 0 {
		return errors.New("error in keys conf: limits must be positive")
	}
	if c.DefaultExpirationDays <= 0 || c.DefaultExpirationDays > c.MaxExpirationDays {
		return errors.Errorf(
			"error in keys conf: default_expiration_days must be between 1 and %d", c.MaxExpirationDays,
		)
	}
	return nil
}

var defaultKeysConf = keysConf{
	MaxQuantity:           1000,
	MaxExpirationDays:     365,
	DefaultExpirationDays: 30,
}

// ServiceConfig returns the service.Config for the login and key settings
func (c *Config) ServiceConfig() service.Config {
	return service.Config{
		LogNotFound:           c.Login.LogNotFound,
		MaxRetries:            c.Login.MaxRetries,
		RecentLogs:            c.Login.RecentLogs,
		MaxQuantity:           c.Keys.MaxQuantity,
		MaxExpirationDays:     c.Keys.MaxExpirationDays,
		DefaultExpirationDays: c.Keys.DefaultExpirationDays,
		StatsLifetime:         c.Caching.StatsLifetime.Duration(),
	}
}
