// Package legacy imports license keys and access logs from the sqlite
// database of the previous key server. Two schemas exist: "keys"
// with "access_logs", and the older "auth_keys" without logs.
package legacy

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gorm.io/gorm"

	"github.com/keygate/keygate/storage"
	"github.com/keygate/keygate/storage/model"
)

const (
	tableKeys     = "keys"
	tableAuthKeys = "auth_keys"
	tableLogs     = "access_logs"
)

// Report summarizes an import
type Report struct {
	KeysImported   int `json:"keys_imported"`
	KeysSkipped    int `json:"keys_skipped"`
	KeysInvalid    int `json:"keys_invalid"`
	EventsImported int `json:"events_imported"`
}

type legacyKey struct {
	KeyID          string
	HWID           *string `gorm:"column:hwid"`
	ExpirationDays int
	CreatedAt      *time.Time
	FirstLoginAt   *time.Time
	IsActive       *bool
	IsPaused       *bool
}

type legacyLog struct {
	KeyID        string
	HWID         string `gorm:"column:hwid"`
	IPAddress    *string
	UserAgent    *string
	LoginAt      *time.Time
	Success      *bool
	ErrorMessage *string
}

// Open opens a legacy database read-only
func Open(path string) (*gorm.DB, error) {
	if !fileutils.FileExists(path) {
		return nil, errors.Errorf("legacy database '%s' does not exist", path)
	}
	return storage.Connect(
		storage.Config{
			Driver: storage.DriverSQLite,
			DSN:    "file:" + path + "?mode=ro",
		},
	)
}

// Import copies all keys of src into tx. Keys whose identifier already exists
// are skipped, as are their access logs. Everything is written in a single
// transaction.
func Import(ctx context.Context, src *gorm.DB, tx model.Transactor) (*Report, error) {
	keys, table, err := readKeys(src)
	if err != nil {
		return nil, err
	}
	logs, err := readLogs(src)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"table": table, "keys": len(keys), "logs": len(logs)}).Info("read legacy database")

	var report Report
	err = tx.Transaction(
		ctx, func(uow model.UnitOfWork) error {
			report = Report{}
			imported := make(map[string]bool, len(keys))
			for _, lk := range keys {
				key, ok := convertKey(lk)
				if !ok {
					report.KeysInvalid++
					continue
				}
				if err := uow.Keys().Create(key); err != nil {
					if model.IsAlreadyExists(err) {
						report.KeysSkipped++
						continue
					}
					return err
				}
				imported[key.KeyID] = true
				report.KeysImported++
			}
			var events []*model.AuditEvent
			for _, ll := range logs {
				if !imported[ll.KeyID] {
					continue
				}
				events = append(events, convertLog(ll))
			}
			report.EventsImported = len(events)
			return uow.AuditLog().Append(events...)
		},
	)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func readKeys(src *gorm.DB) ([]legacyKey, string, error) {
	var table, idColumn string
	switch {
	case src.Migrator().HasTable(tableKeys):
		table, idColumn = tableKeys, "key_id"
	case src.Migrator().HasTable(tableAuthKeys):
		table, idColumn = tableAuthKeys, "key_value"
	default:
		return nil, "", errors.New("no legacy key table found")
	}
	var keys []legacyKey
	err := src.Table(table).
		Select(
			idColumn + " AS key_id, hwid, expiration_days, created_at, first_login_at, is_active, is_paused",
		).
		Order("id").
		Scan(&keys).Error
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read legacy table '%s'", table)
	}
	return keys, table, nil
}

func readLogs(src *gorm.DB) ([]legacyLog, error) {
	if !src.Migrator().HasTable(tableLogs) {
		return nil, nil
	}
	var logs []legacyLog
	err := src.Table(tableLogs).
		Select("key_id, hwid, ip_address, user_agent, login_at, success, error_message").
		Order("id").
		Scan(&logs).Error
	return logs, errors.Wrap(err, "failed to read legacy access logs")
}

// convertKey maps a legacy row onto a LicenseKey. A key counts as used if
// and only if it has a hardware id; the expiry is recomputed from the first
// login.
func convertKey(lk legacyKey) (*model.LicenseKey, bool) {
	if len(lk.KeyID) != model.KeyIDLength || !digits(lk.KeyID) || lk.ExpirationDays <= 0 {
		return nil, false
	}
	key := &model.LicenseKey{
		KeyID:          lk.KeyID,
		ExpirationDays: lk.ExpirationDays,
		IsActive:       boolOr(lk.IsActive, true),
		IsPaused:       boolOr(lk.IsPaused, false),
	}
	if lk.CreatedAt != nil {
		key.CreatedAt = lk.CreatedAt.UTC()
	}
	if lk.HWID != nil && *lk.HWID != "" {
		first := key.CreatedAt
		if lk.FirstLoginAt != nil {
			first = lk.FirstLoginAt.UTC()
		}
		if first.IsZero() {
			first = time.Now().UTC()
		}
		expires := first.Add(time.Duration(lk.ExpirationDays) * 24 * time.Hour)
		hwid := *lk.HWID
		key.HWID = &hwid
		key.IsUsed = true
		key.FirstLoginAt = &first
		key.ExpiresAt = &expires
		key.LastLoginAt = &first
	}
	return key, true
}

func convertLog(ll legacyLog) *model.AuditEvent {
	ev := &model.AuditEvent{
		KeyID:     ll.KeyID,
		HWID:      ll.HWID,
		Success:   boolOr(ll.Success, true),
		IPAddress: deref(ll.IPAddress),
		UserAgent: deref(ll.UserAgent),
		Action:    model.ActionLoginSuccess,
	}
	if !ev.Success {
		ev.Action = model.ActionLoginFailed
		ev.Reason = deref(ll.ErrorMessage)
	}
	if ll.LoginAt != nil {
		ev.Timestamp = ll.LoginAt.UTC()
	} else {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func digits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
