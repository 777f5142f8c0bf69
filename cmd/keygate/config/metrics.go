package config

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/keygate/keygate"
)

type metricsConf struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (c *metricsConf) validate() error {
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return errors.Errorf("error in metrics conf: path '%s' must start with '/'", c.Path)
	}
	return nil
}

var defaultMetricsConf = metricsConf{
	Path: keygate.DefaultMetricsPath,
}

type geoIPConf struct {
	// Database is the path of a MaxMind country or city database; empty
	// disables the lookup
	Database string `yaml:"database"`
}
