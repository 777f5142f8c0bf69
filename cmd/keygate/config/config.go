// Package config loads the yaml configuration of the keygate server.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/keygate/keygate"
)

// DefaultFile is read when no configuration file is passed
const DefaultFile = "config.yaml"

// Config holds the complete server configuration
type Config struct {
	Server   keygate.ServerConf `yaml:"server"`
	Storage  storageConf        `yaml:"storage"`
	Logging  loggingConf        `yaml:"logging"`
	API      apiConf            `yaml:"api"`
	Login    loginConf          `yaml:"login"`
	Keys     keysConf           `yaml:"keys"`
	Caching  cachingConf        `yaml:"caching"`
	Receipts receiptsConf       `yaml:"receipts"`
	GeoIP    geoIPConf          `yaml:"geoip"`
	Metrics  metricsConf        `yaml:"metrics"`
}

var c *Config

// Get returns the loaded Config
func Get() *Config {
	return c
}

func defaultConfig() *Config {
	return &Config{
		Server:   defaultServerConf,
		Storage:  defaultStorageConf,
		Logging:  defaultLoggingConf,
		API:      defaultAPIConf,
		Login:    defaultLoginConf,
		Keys:     defaultKeysConf,
		Caching:  defaultCachingConf,
		Receipts: defaultReceiptsConf,
		Metrics:  defaultMetricsConf,
	}
}

var defaultServerConf = keygate.ServerConf{
	Port: 8080,
}

// Load reads and validates the configuration file and makes it available
// through Get
func Load(filename string) error {
	if filename == "" {
		filename = DefaultFile
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "could not read config file '%s'", filename)
	}
	conf, err := Parse(data)
	if err != nil {
		return errors.Wrapf(err, "invalid config file '%s'", filename)
	}
	c = conf
	return nil
}

// Parse decodes and validates a yaml configuration over the defaults
func Parse(data []byte) (*Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 {
		return errors.New("error in server conf: port must be positive")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.Cert == "" || c.Server.TLS.Key == "") {
		return errors.New("error in server conf: tls requires cert and key")
	}
	validators := []interface{ validate() error }{
		&c.Storage,
		&c.Logging,
		&c.Login,
		&c.Keys,
		&c.Receipts,
		&c.Metrics,
	}
	for _, v := range validators {
		if err := v.validate(); err != nil {
			return err
		}
	}
	return nil
}
