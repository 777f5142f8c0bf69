package storage

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/keygate/keygate/storage/model"
)

// KeyStorage implements model.KeyStore using GORM
type KeyStorage struct {
	db *gorm.DB
}

// Create inserts a new license key
func (s *KeyStorage) Create(key *model.LicenseKey) error {
	exists, err := s.Exists(key.KeyID)
	if err != nil {
		return err
	}
	if exists {
		return model.AlreadyExistsErrorFmt("license key already exists: %s", key.KeyID)
	}
	if err = s.db.Create(key).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.AlreadyExistsErrorFmt("license key already exists: %s", key.KeyID)
		}
		return errors.Wrap(err, "failed to create license key")
	}
	return nil
}

// Get returns a license key by identifier
func (s *KeyStorage) Get(keyID string) (*model.LicenseKey, error) {
	var key model.LicenseKey
	if err := s.db.Where("key_id = ?", keyID).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("license key not found: %s", keyID)
		}
		return nil, errors.Wrap(err, "failed to get license key")
	}
	return &key, nil
}

// Exists reports whether a license key with this identifier exists
func (s *KeyStorage) Exists(keyID string) (bool, error) {
	var count int64
	if err := s.db.Model(&model.LicenseKey{}).Where("key_id = ?", keyID).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check license key")
	}
	return count > 0, nil
}

// Update writes all mutable fields of the key if its version is unchanged
// and increments the version.
func (s *KeyStorage) Update(key *model.LicenseKey) error {
	now := time.Now().UTC()
	res := s.db.Model(&model.LicenseKey{}).
		Where("key_id = ? AND version = ?", key.KeyID, key.Version).
		Updates(
			map[string]any{
				"hwid":           key.HWID,
				"first_login_at": key.FirstLoginAt,
				"expires_at":     key.ExpiresAt,
				"last_login_at":  key.LastLoginAt,
				"login_count":    key.LoginCount,
				"is_used":        key.IsUsed,
				"is_paused":      key.IsPaused,
				"is_active":      key.IsActive,
				"version":        key.Version + 1,
				"updated_at":     now,
			},
		)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update license key")
	}
	if res.RowsAffected == 0 {
		exists, err := s.Exists(key.KeyID)
		if err != nil {
			return err
		}
		if !exists {
			return model.NotFoundErrorFmt("license key not found: %s", key.KeyID)
		}
		return model.ErrVersionConflict
	}
	key.Version++
	key.UpdatedAt = now
	return nil
}

// Delete removes a license key together with its audit events
func (s *KeyStorage) Delete(keyID string) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Where("key_id = ?", keyID).Delete(&model.AuditEvent{}).Error; err != nil {
				return errors.Wrap(err, "failed to delete audit events")
			}
			res := tx.Where("key_id = ?", keyID).Delete(&model.LicenseKey{})
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to delete license key")
			}
			if res.RowsAffected == 0 {
				return model.NotFoundErrorFmt("license key not found: %s", keyID)
			}
			return nil
		},
	)
}

// DeleteAll removes all license keys and all audit events
func (s *KeyStorage) DeleteAll() (deleted int64, err error) {
	err = s.db.Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(&model.AuditEvent{}).Error; err != nil {
				return errors.Wrap(err, "failed to delete audit events")
			}
			res := tx.Where("1 = 1").Delete(&model.LicenseKey{})
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to delete license keys")
			}
			deleted = res.RowsAffected
			return nil
		},
	)
	if err != nil {
		deleted = 0
	}
	return
}

// List returns one page of license keys, newest first
func (s *KeyStorage) List(query model.KeyQuery, page model.Page) ([]model.LicenseKey, int64, error) {
	var total int64
	if err := applyKeyQuery(s.db.Model(&model.LicenseKey{}), query).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count license keys")
	}
	var keys []model.LicenseKey
	q := applyKeyQuery(s.db, query).Order("created_at desc").Order("id desc")
	if page.PerPage > 0 {
		q = q.Offset(page.Offset()).Limit(page.PerPage)
	}
	if err := q.Find(&keys).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list license keys")
	}
	return keys, total, nil
}

// Count returns the number of license keys matching the query
func (s *KeyStorage) Count(query model.KeyQuery) (int64, error) {
	var count int64
	err := applyKeyQuery(s.db.Model(&model.LicenseKey{}), query).Count(&count).Error
	return count, errors.Wrap(err, "failed to count license keys")
}

// IDs returns the identifiers of all license keys matching the query
func (s *KeyStorage) IDs(query model.KeyQuery) (ids []string, err error) {
	err = errors.Wrap(
		applyKeyQuery(s.db.Model(&model.LicenseKey{}), query).
			Order("id").
			Pluck("key_id", &ids).Error,
		"failed to query license key ids",
	)
	return
}

// BulkSetPaused sets the paused flag on all matching keys in a single
// statement; every row is updated atomically by the database.
func (s *KeyStorage) BulkSetPaused(query model.KeyQuery, paused bool) (int64, error) {
	res := applyKeyQuery(s.db.Model(&model.LicenseKey{}), query).
		Where("is_paused <> ?", paused).
		Updates(
			map[string]any{
				"is_paused":  paused,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			},
		)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to update license keys")
	}
	return res.RowsAffected, nil
}

// applyKeyQuery translates a model.KeyQuery into where clauses. The status
// buckets mirror model.LicenseKey.StatusAt.
func applyKeyQuery(db *gorm.DB, q model.KeyQuery) *gorm.DB {
	if q.Search != "" {
		db = db.Where("key_id LIKE ?", "%"+q.Search+"%")
	}
	if q.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	if q.Paused != nil {
		db = db.Where("is_paused = ?", *q.Paused)
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	if q.PastExpiry {
		db = db.Where("expires_at IS NOT NULL AND expires_at < ?", now)
	}
	switch q.Status {
	case model.FilterInactive:
		db = db.Where("is_active = ?", false)
	case model.FilterPaused:
		db = db.Where("is_active = ? AND is_paused = ?", true, true)
	case model.FilterUnused:
		db = db.Where("is_active = ? AND is_paused = ? AND is_used = ?", true, false, false)
	case model.FilterExpired:
		db = db.Where(
			"is_active = ? AND is_paused = ? AND is_used = ? AND expires_at IS NOT NULL AND expires_at < ?",
			true, false, true, now,
		)
	case model.FilterActive:
		db = db.Where(
			"is_active = ? AND is_paused = ? AND is_used = ? AND (expires_at IS NULL OR expires_at >= ?)",
			true, false, true, now,
		)
	case model.FilterUsed:
		db = db.Where("is_used = ?", true)
	}
	return db
}
