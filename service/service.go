// Package service implements the login protocol and the administrative
// operations on license keys. Every operation runs as one unit of work
// against the store.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/internal/geoip"
	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/internal/receipt"
	"github.com/keygate/keygate/lifecycle"
	"github.com/keygate/keygate/storage/model"
)

// Config holds the limits and defaults of the service
type Config struct {
	// LogNotFound records an audit event for logins with unknown keys
	LogNotFound bool
	// MaxRetries is the number of times a unit of work is retried after a
	// concurrent modification
	MaxRetries int
	// RecentLogs is the number of audit events returned with a key
	RecentLogs int
	// MaxQuantity is the maximum number of keys created at once
	MaxQuantity int
	// MaxExpirationDays is the maximum expiration period of new keys
	MaxExpirationDays int
	// DefaultExpirationDays is used when no expiration period is given
	DefaultExpirationDays int
	// StatsLifetime is how long statistics are cached; zero disables caching
	StatsLifetime time.Duration
}

// DefaultConfig returns the default service configuration
func DefaultConfig() Config {
	return Config{
		LogNotFound:           true,
		MaxRetries:            3,
		RecentLogs:            10,
		MaxQuantity:           1000,
		MaxExpirationDays:     365,
		DefaultExpirationDays: 30,
		StatsLifetime:         10 * time.Second,
	}
}

// Service implements all operations on license keys
type Service struct {
	tx       model.Transactor
	engine   *lifecycle.Engine
	conf     Config
	geo      geoip.Locator
	receipts *receipt.Signer
	validate *validator.Validate

	logNotFound atomic.Bool
}

// Option configures optional collaborators of a Service
type Option func(*Service)

// WithEngine sets the lifecycle engine, e.g. to inject a clock
func WithEngine(e *lifecycle.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithGeoIP enables country lookups for audit events
func WithGeoIP(l geoip.Locator) Option {
	return func(s *Service) {
		s.geo = l
	}
}

// WithReceipts enables signed receipts for accepted logins
func WithReceipts(signer *receipt.Signer) Option {
	return func(s *Service) {
		s.receipts = signer
	}
}

// New creates a Service on top of the passed Transactor
func New(tx model.Transactor, conf Config, opts ...Option) *Service {
	def := DefaultConfig()
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = def.MaxRetries
	}
	if conf.RecentLogs <= 0 {
		conf.RecentLogs = def.RecentLogs
	}
	if conf.MaxQuantity <= 0 {
		conf.MaxQuantity = def.MaxQuantity
	}
	if conf.MaxExpirationDays <= 0 {
		conf.MaxExpirationDays = def.MaxExpirationDays
	}
	if conf.DefaultExpirationDays <= 0 {
		conf.DefaultExpirationDays = def.DefaultExpirationDays
	}
	s := &Service{
		tx:       tx,
		engine:   lifecycle.NewEngine(),
		conf:     conf,
		geo:      geoip.Nop{},
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logNotFound.Store(conf.LogNotFound)
	return s
}

// Engine returns the lifecycle engine used by the service
func (s *Service) Engine() *lifecycle.Engine {
	return s.engine
}

// Receipts returns the receipt signer or nil if receipts are disabled
func (s *Service) Receipts() *receipt.Signer {
	return s.receipts
}

// transaction runs fn as one unit of work and runs it again if it failed
// because a key was modified concurrently
func (s *Service) transaction(ctx context.Context, fn func(uow model.UnitOfWork) error) error {
	var err error
	for attempt := 0; attempt <= s.conf.MaxRetries; attempt++ {
		err = s.tx.Transaction(ctx, fn)
		if !errors.Is(err, model.ErrVersionConflict) {
			return err
		}
		metrics.VersionConflicts.Inc()
		log.WithField("attempt", attempt+1).Debug("concurrent key modification, retrying")
	}
	return errors.Wrap(err, "giving up after repeated concurrent modifications")
}

// changed invalidates cached data after a successful mutation
func (*Service) changed() {
	if err := cache.Delete(cache.KeyStats); err != nil {
		log.WithError(err).Warn("could not invalidate cached statistics")
	}
}

func (s *Service) event(keyID string, action model.Action) *model.AuditEvent {
	return &model.AuditEvent{
		KeyID:     keyID,
		Action:    action,
		Success:   true,
		Timestamp: s.engine.Time(),
	}
}
