package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/storage"
)

func TestParseDefaults(t *testing.T) {
	conf, err := Parse([]byte("storage:\n  data_dir: /tmp\n"))
	require.NoError(t, err)
	assert.Equal(t, 8080, conf.Server.Port)
	assert.Equal(t, storage.DriverSQLite, conf.Storage.Driver)
	assert.Equal(t, "/api/login", conf.Login.Path)
	assert.True(t, conf.Login.LogNotFound)
	assert.True(t, conf.API.Admin.Enabled)
	assert.True(t, conf.Logging.Internal.StdErr, "internal log falls back to stderr")
	assert.Nil(t, conf.Caching.RedisOptions())

	sc := conf.ServiceConfig()
	assert.Equal(t, 3, sc.MaxRetries)
	assert.Equal(t, 10, sc.RecentLogs)
	assert.Equal(t, 1000, sc.MaxQuantity)
	assert.Equal(t, 365, sc.MaxExpirationDays)
	assert.Equal(t, 30, sc.DefaultExpirationDays)
	assert.Equal(t, 10*time.Second, sc.StatsLifetime)
}

func TestParseOverrides(t *testing.T) {
	conf, err := Parse(
		[]byte(`
server:
  port: 9000
  trusted_proxies: [10.0.0.1]
  forwarded_ip_header: X-Forwarded-For
storage:
  driver: postgres
  host: db
  password: secret
login:
  path: /auth
  log_not_found: false
keys:
  default_expiration_days: 7
caching:
  redis_addr: redis:6379
  redis_db: 2
  stats_lifetime: 1m
receipts:
  enabled: true
  key_file: /tmp/receipt.pem
  lifetime: 2h
metrics:
  enabled: true
`),
	)
	require.NoError(t, err)
	assert.Equal(t, 9000, conf.Server.Port)
	assert.Equal(t, []string{"10.0.0.1"}, conf.Server.TrustedProxies)
	assert.Equal(t, "host=db user=keygate password=secret dbname=keygate port=5432", conf.Storage.DSN)
	assert.False(t, conf.ServiceConfig().LogNotFound)
	assert.Equal(t, 7, conf.ServiceConfig().DefaultExpirationDays)
	assert.Equal(t, time.Minute, conf.ServiceConfig().StatsLifetime)
	require.NotNil(t, conf.Caching.RedisOptions())
	assert.Equal(t, 2, conf.Caching.RedisOptions().DB)
	assert.Equal(t, 2*time.Hour, conf.Receipts.SignerConfig().Lifetime)
	assert.Equal(t, "ES256", conf.Receipts.SignerConfig().Alg)
	assert.Equal(t, "/metrics", conf.Metrics.Path)
}

func TestParseInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"sqlite without dir": "storage:\n  driver: sqlite\n",
		"unknown driver":     "storage:\n  driver: oracle\n",
		"bad login path":     "storage:\n  data_dir: /tmp\nlogin:\n  path: login\n",
		"default too long":   "storage:\n  data_dir: /tmp\nkeys:\n  default_expiration_days: 400\n",
		"receipt alg":        "storage:\n  data_dir: /tmp\nreceipts:\n  enabled: true\n  alg: nope\n  key_file: k.pem\n",
		"tls without cert":   "storage:\n  data_dir: /tmp\nserver:\n  tls:\n    enabled: true\n",
		"missing log dir":    "storage:\n  data_dir: /tmp\nlogging:\n  access:\n    dir: /does/not/exist\n",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("storage:\n  data_dir: "+t.TempDir()+"\n"), 0o600))
	require.NoError(t, Load(file))
	require.NotNil(t, Get())
	assert.Equal(t, 30, Get().Keys.DefaultExpirationDays)

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml")))
}
