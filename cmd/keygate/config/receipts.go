package config

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"

	"github.com/keygate/keygate/internal/receipt"
)

type receiptsConf struct {
	Enabled      bool                    `yaml:"enabled"`
	Alg          string                  `yaml:"alg"`
	KeyFile      string                  `yaml:"key_file"`
	AutoGenerate bool                    `yaml:"auto_generate"`
	Lifetime     duration.DurationOption `yaml:"lifetime"`
	Issuer       string                  `yaml:"issuer"`
}

func (c *receiptsConf) validate() error {
	if !c.Enabled {
		return nil
	}
	if _, ok := jwa.LookupSignatureAlgorithm(c.Alg); !ok {
		return errors.Errorf("error in receipts conf: unknown alg '%s'", c.Alg)
	}
	if c.KeyFile == "" {
		return errors.New("error in receipts conf: key_file must be specified")
	}
	if c.Lifetime.Duration() <= 0 {
		return errors.New("error in receipts conf: lifetime must be positive")
	}
	return nil
}

// SignerConfig returns the receipt.Config
func (c receiptsConf) SignerConfig() receipt.Config {
	return receipt.Config{
		Alg:          c.Alg,
		KeyFile:      c.KeyFile,
		AutoGenerate: c.AutoGenerate,
		Lifetime:     c.Lifetime.Duration(),
		Issuer:       c.Issuer,
	}
}

var defaultReceiptsConf = receiptsConf{
	Alg:      "ES256",
	Lifetime: duration.DurationOption(time.Hour),
}
