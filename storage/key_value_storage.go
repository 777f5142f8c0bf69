package storage

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keygate/keygate/storage/model"
)

// KeyValueStorage implements model.KeyValueStore using GORM
type KeyValueStorage struct {
	db *gorm.DB
}

// KeyValue returns a KeyValueStorage that is not bound to a transaction
func (s *Storage) KeyValue() *KeyValueStorage {
	return &KeyValueStorage{db: s.db}
}

// Get returns the raw JSON value of (scope, key) or nil if it is not set
func (s *KeyValueStorage) Get(scope, key string) (datatypes.JSON, error) {
	var raw []byte
	row := s.db.Model(&model.KeyValue{}).
		Select("value").
		Where(map[string]any{"scope": scope, "key": key}).
		Row()
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read setting %s/%s", scope, key)
	}
	if raw == nil {
		return nil, nil
	}
	return raw, nil
}

// Set creates or replaces the value of (scope, key)
func (s *KeyValueStorage) Set(scope, key string, value datatypes.JSON) error {
	kv := model.KeyValue{
		Scope: scope,
		Key:   key,
		Value: value,
	}
	err := s.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "scope"},
				{Name: "key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		},
	).Create(&kv).Error
	return errors.Wrapf(err, "failed to store setting %s/%s", scope, key)
}

// Delete removes (scope, key); a missing entry is not an error
func (s *KeyValueStorage) Delete(scope, key string) error {
	err := s.db.Where(map[string]any{"scope": scope, "key": key}).Delete(&model.KeyValue{}).Error
	return errors.Wrapf(err, "failed to delete setting %s/%s", scope, key)
}

// GetAs decodes the value of (scope, key) into out and reports whether it
// was set
func (s *KeyValueStorage) GetAs(scope, key string, out any) (bool, error) {
	raw, err := s.Get(scope, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "invalid setting %s/%s", scope, key)
	}
	return true, nil
}

// SetAny encodes v as JSON and stores it at (scope, key)
func (s *KeyValueStorage) SetAny(scope, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return s.Set(scope, key, b)
}
