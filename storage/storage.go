package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/keygate/keygate/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.LicenseKey{},
	&model.AuditEvent{},
	&model.KeyValue{},
	&model.User{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate the schemas
	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Fill user hash params with defaults if zero values
	params := config.UsersHash
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}

	return &Storage{
		db:         db,
		userParams: params,
	}, nil
}

// LoadStorageBackends initializes a warehouse and returns grouped backends.
func LoadStorageBackends(cfg Config) (model.Backends, error) {
	warehouse, err := NewStorage(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	return warehouse.Backends(), nil
}

// Backends returns the grouped backends of this Storage
func (s *Storage) Backends() model.Backends {
	return model.Backends{
		Tx:    s,
		Users: s.UsersStorage(),
	}
}

// Close closes the underlying database connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction implements model.Transactor
func (s *Storage) Transaction(ctx context.Context, fn func(uow model.UnitOfWork) error) error {
	return s.db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			return fn(unitOfWork{db: tx})
		},
	)
}

// Session implements model.Transactor
func (s *Storage) Session(ctx context.Context) model.UnitOfWork {
	return unitOfWork{db: s.db.WithContext(ctx)}
}

// KeyStorage returns a KeyStorage that is not bound to a transaction
func (s *Storage) KeyStorage() *KeyStorage {
	return &KeyStorage{db: s.db}
}

// AuditStorage returns an AuditStorage that is not bound to a transaction
func (s *Storage) AuditStorage() *AuditStorage {
	return &AuditStorage{db: s.db}
}

// unitOfWork binds all stores to the same *gorm.DB session
type unitOfWork struct {
	db *gorm.DB
}

func (u unitOfWork) Keys() model.KeyStore {
	return &KeyStorage{db: u.db}
}

func (u unitOfWork) AuditLog() model.AuditLogStore {
	return &AuditStorage{db: u.db}
}

func (u unitOfWork) KV() model.KeyValueStore {
	return &KeyValueStorage{db: u.db}
}
