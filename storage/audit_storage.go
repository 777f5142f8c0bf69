package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/keygate/keygate/storage/model"
)

// AuditStorage implements model.AuditLogStore using GORM
type AuditStorage struct {
	db *gorm.DB
}

// Append stores new audit events
func (s *AuditStorage) Append(events ...*model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	return errors.Wrap(s.db.Create(events).Error, "failed to append audit events")
}

// ListByKey returns the newest audit events of a key
func (s *AuditStorage) ListByKey(keyID string, limit int) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	q := s.db.Where("key_id = ?", keyID).Order("timestamp desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list audit events")
	}
	return events, nil
}

// List returns one page of audit events, newest first
func (s *AuditStorage) List(query model.AuditQuery, page model.Page) ([]model.AuditEvent, int64, error) {
	var total int64
	if err := applyAuditQuery(s.db.Model(&model.AuditEvent{}), query).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit events")
	}
	var events []model.AuditEvent
	q := applyAuditQuery(s.db, query).Order("timestamp desc").Order("id desc")
	if page.PerPage > 0 {
		q = q.Offset(page.Offset()).Limit(page.PerPage)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit events")
	}
	return events, total, nil
}

// Count returns the number of audit events matching the query
func (s *AuditStorage) Count(query model.AuditQuery) (int64, error) {
	var count int64
	err := applyAuditQuery(s.db.Model(&model.AuditEvent{}), query).Count(&count).Error
	return count, errors.Wrap(err, "failed to count audit events")
}

func applyAuditQuery(db *gorm.DB, q model.AuditQuery) *gorm.DB {
	if q.KeySearch != "" {
		db = db.Where("key_id LIKE ?", "%"+q.KeySearch+"%")
	}
	if q.Success != nil {
		db = db.Where("success = ?", *q.Success)
	}
	if len(q.Actions) > 0 {
		db = db.Where("action IN ?", q.Actions)
	}
	return db
}
