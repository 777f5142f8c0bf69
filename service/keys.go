package service

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/lifecycle"
	"github.com/keygate/keygate/storage/model"
)

// Paging defaults and limits
const (
	DefaultKeysPerPage = 20
	DefaultLogsPerPage = 50
	MaxPerPage         = 100
)

// KeyView is a license key together with its derived status
type KeyView struct {
	model.LicenseKey
	Status  model.Status `json:"status"`
	Expired bool         `json:"expired"`
}

func (s *Service) view(key model.LicenseKey) KeyView {
	return KeyView{
		LicenseKey: key,
		Status:     s.engine.Status(&key),
		Expired:    s.engine.Expired(&key),
	}
}

// CreateKeysRequest describes a batch of new keys; nil fields take their
// defaults
type CreateKeysRequest struct {
	Quantity       *int `json:"quantity" validate:"omitempty,min=1"`
	ExpirationDays *int `json:"expiration_days" validate:"omitempty,min=1"`
}

// CreateKeysResult lists the issued keys
type CreateKeysResult struct {
	Keys           []string `json:"keys"`
	ExpirationDays int      `json:"expiration_days"`
}

// CreateKeys issues new keys
func (s *Service) CreateKeys(ctx context.Context, req CreateKeysRequest) (*CreateKeysResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	quantity, days := 1, s.conf.DefaultExpirationDays
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if req.ExpirationDays != nil {
		days = *req.ExpirationDays
	}
	if quantity > s.conf.MaxQuantity {
		return nil, invalid("quantity", "must be at most %d", s.conf.MaxQuantity)
	}
	if days > s.conf.MaxExpirationDays {
		return nil, invalid("expiration_days", "must be at most %d", s.conf.MaxExpirationDays)
	}

	var ids []string
	err := s.transaction(
		ctx, func(uow model.UnitOfWork) error {
			ids = make([]string, 0, quantity)
			events := make([]*model.AuditEvent, 0, quantity)
			for range quantity {
				key, err := s.createKey(uow.Keys(), days)
				if err != nil {
					return err
				}
				ids = append(ids, key.KeyID)
				events = append(events, s.event(key.KeyID, model.ActionKeyCreated))
			}
			return uow.AuditLog().Append(events...)
		},
	)
	if err != nil {
		return nil, err
	}
	s.changed()
	metrics.KeysCreated.Add(float64(len(ids)))
	metrics.AdminOperations.WithLabelValues("create").Inc()
	log.WithFields(log.Fields{"count": len(ids), "expiration_days": days}).Info("created license keys")
	return &CreateKeysResult{
		Keys:           ids,
		ExpirationDays: days,
	}, nil
}

// createKey generates and stores one key. An identifier taken between the
// existence check and the insert is treated like any other collision.
func (s *Service) createKey(keys model.KeyStore, days int) (*model.LicenseKey, error) {
	for range lifecycle.MaxGenerateAttempts {
		key, err := s.engine.Generate(days, keys.Exists)
		if err != nil {
			return nil, err
		}
		err = keys.Create(key)
		if err == nil {
			return key, nil
		}
		if !model.IsAlreadyExists(err) {
			return nil, err
		}
	}
	return nil, lifecycle.ErrKeyspaceExhausted
}

// ListKeysRequest selects a page of keys
type ListKeysRequest struct {
	Search  string `json:"search" validate:"omitempty,max=8,digits"`
	Status  string `json:"status" validate:"omitempty,oneof=active paused inactive unused expired used"`
	Page    int    `json:"page" validate:"omitempty,min=1"`
	PerPage int    `json:"per_page" validate:"omitempty,min=1"`
}

// KeyPage is one page of keys
type KeyPage struct {
	Keys    []KeyView `json:"keys"`
	Total   int64     `json:"total"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
	Pages   int       `json:"pages"`
}

func page(p, perPage, def int) model.Page {
	if p < 1 {
		p = 1
	}
	if perPage < 1 {
		perPage = def
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return model.Page{
		Page:    p,
		PerPage: perPage,
	}
}

// ListKeys returns one page of keys, newest first
func (s *Service) ListKeys(ctx context.Context, req ListKeysRequest) (*KeyPage, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	filter, err := model.ParseStatusFilter(req.Status)
	if err != nil {
		return nil, invalid("status", "%s", err.Error())
	}
	pg := page(req.Page, req.PerPage, DefaultKeysPerPage)
	keys, total, err := s.tx.Session(ctx).Keys().List(
		model.KeyQuery{
			Search: req.Search,
			Status: filter,
			Now:    s.engine.Time(),
		}, pg,
	)
	if err != nil {
		return nil, err
	}
	views := make([]KeyView, len(keys))
	for i, k := range keys {
		views[i] = s.view(k)
	}
	return &KeyPage{
		Keys:    views,
		Total:   total,
		Page:    pg.Page,
		PerPage: pg.PerPage,
		Pages:   pg.Pages(total),
	}, nil
}

// KeyDetails is a key with its most recent audit events
type KeyDetails struct {
	Key        KeyView            `json:"key"`
	RecentLogs []model.AuditEvent `json:"recent_logs"`
}

// GetKey returns a key and its most recent audit events
func (s *Service) GetKey(ctx context.Context, keyID string) (*KeyDetails, error) {
	if err := checkKeyID(keyID); err != nil {
		return nil, err
	}
	uow := s.tx.Session(ctx)
	key, err := uow.Keys().Get(keyID)
	if err != nil {
		return nil, err
	}
	events, err := uow.AuditLog().ListByKey(keyID, s.conf.RecentLogs)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	return &KeyDetails{
		Key:        s.view(*key),
		RecentLogs: events,
	}, nil
}

// DeleteKey deletes a key and its audit events
func (s *Service) DeleteKey(ctx context.Context, keyID string) error {
	if err := checkKeyID(keyID); err != nil {
		return err
	}
	if err := s.tx.Transaction(
		ctx, func(uow model.UnitOfWork) error {
			return uow.Keys().Delete(keyID)
		},
	); err != nil {
		return err
	}
	s.changed()
	metrics.AdminOperations.WithLabelValues("delete").Inc()
	log.WithField("key_id", keyID).Info("deleted license key")
	return nil
}

// DeleteAllKeys deletes all keys and all audit events and returns the number
// of deleted keys
func (s *Service) DeleteAllKeys(ctx context.Context) (int64, error) {
	var n int64
	err := s.tx.Transaction(
		ctx, func(uow model.UnitOfWork) (err error) {
			n, err = uow.Keys().DeleteAll()
			return
		},
	)
	if err != nil {
		return 0, err
	}
	s.changed()
	metrics.AdminOperations.WithLabelValues("delete_all").Inc()
	log.WithField("count", n).Info("deleted all license keys")
	return n, nil
}

// mutateKey applies change to a key in one unit of work. If change reports
// a modification, the key is stored and an audit event with action is
// recorded.
func (s *Service) mutateKey(
	ctx context.Context, keyID string, action model.Action, change func(*model.LicenseKey) bool,
) (*KeyView, error) {
	if err := checkKeyID(keyID); err != nil {
		return nil, err
	}
	var (
		key     *model.LicenseKey
		changed bool
	)
	err := s.transaction(
		ctx, func(uow model.UnitOfWork) (err error) {
			key, err = uow.Keys().Get(keyID)
			if err != nil {
				return err
			}
			if changed = change(key); !changed {
				return nil
			}
			if err = uow.Keys().Update(key); err != nil {
				return err
			}
			return uow.AuditLog().Append(s.event(keyID, action))
		},
	)
	if err != nil {
		return nil, err
	}
	if changed {
		s.changed()
		metrics.AdminOperations.WithLabelValues(string(action)).Inc()
		log.WithFields(log.Fields{"key_id": keyID, "action": action}).Info("license key changed")
	}
	v := s.view(*key)
	return &v, nil
}

// ResetHWID returns a key to its unused state so that the next login binds
// it again
func (s *Service) ResetHWID(ctx context.Context, keyID string) (*KeyView, error) {
	return s.mutateKey(
		ctx, keyID, model.ActionHWIDReset, func(key *model.LicenseKey) bool {
			lifecycle.ResetHWID(key)
			return true
		},
	)
}

// SetPaused pauses or resumes a key
func (s *Service) SetPaused(ctx context.Context, keyID string, paused bool) (*KeyView, error) {
	if paused {
		return s.mutateKey(ctx, keyID, model.ActionKeyPaused, lifecycle.Pause)
	}
	return s.mutateKey(ctx, keyID, model.ActionKeyResumed, lifecycle.Resume)
}

// SetActive deactivates or reactivates a key
func (s *Service) SetActive(ctx context.Context, keyID string, active bool) (*KeyView, error) {
	action := model.ActionKeyDeactivated
	if active {
		action = model.ActionKeyReactivated
	}
	return s.mutateKey(
		ctx, keyID, action, func(key *model.LicenseKey) bool {
			return lifecycle.SetActive(key, active)
		},
	)
}

// SetAllPaused pauses or resumes all active keys and returns the number of
// changed keys
func (s *Service) SetAllPaused(ctx context.Context, paused bool) (int64, error) {
	action := model.ActionKeyResumed
	if paused {
		action = model.ActionKeyPaused
	}
	var n int64
	err := s.transaction(
		ctx, func(uow model.UnitOfWork) error {
			notYet := !paused
			ids, err := uow.Keys().IDs(
				model.KeyQuery{
					ActiveOnly: true,
					Paused:     &notYet,
				},
			)
			if err != nil {
				return err
			}
			if n, err = uow.Keys().BulkSetPaused(model.KeyQuery{ActiveOnly: true}, paused); err != nil {
				return err
			}
			if n != int64(len(ids)) {
				return errors.Wrapf(
					model.ErrVersionConflict, "%d keys selected but %d changed", len(ids), n,
				)
			}
			events := make([]*model.AuditEvent, len(ids))
			for i, id := range ids {
				events[i] = s.event(id, action)
			}
			return uow.AuditLog().Append(events...)
		},
	)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.changed()
	}
	metrics.AdminOperations.WithLabelValues("bulk_" + string(action)).Inc()
	log.WithFields(log.Fields{"count": n, "paused": paused}).Info("changed pause state of all keys")
	return n, nil
}
