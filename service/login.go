package service

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/internal/receipt"
	"github.com/keygate/keygate/lifecycle"
	"github.com/keygate/keygate/storage/model"
)

// LoginRequest is one login attempt of a client
type LoginRequest struct {
	Key  string `json:"key" validate:"required,keyid"`
	HWID string `json:"hwid" validate:"required,max=255"`
	// IPAddress and UserAgent describe the client; both are optional
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResult is the outcome of an audited login attempt. Either Success is
// set or Reason names the rejection.
type LoginResult struct {
	Success      bool
	FirstUse     bool
	Reason       lifecycle.Reason
	KeyID        string
	// Status is the derived status after the attempt; nil if the key does
	// not exist
	Status       *model.Status
	FirstLoginAt *time.Time
	ExpiresAt    *time.Time
	Receipt      string
}

// Login runs the login protocol for one request: the key is looked up,
// validated, persisted if accepted, and exactly one audit event is recorded.
// Malformed requests return a ValidationError without being audited. Any
// other error is a store failure after which nothing was written.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	started := time.Now()
	// hardware ids are opaque and compared as sent
	req.Key = strings.TrimSpace(req.Key)
	if err := s.check(req); err != nil {
		return nil, err
	}
	country := s.geo.Country(req.IPAddress)

	var res *LoginResult
	err := s.transaction(
		ctx, func(uow model.UnitOfWork) error {
			res = &LoginResult{KeyID: req.Key}
			ev := &model.AuditEvent{
				KeyID:     req.Key,
				HWID:      req.HWID,
				IPAddress: req.IPAddress,
				UserAgent: req.UserAgent,
				Country:   country,
			}

			key, err := uow.Keys().Get(req.Key)
			if err != nil {
				if !model.IsNotFound(err) {
					return err
				}
				res.Reason = lifecycle.ReasonNotFound
				if !s.logNotFound.Load() {
					return nil
				}
				ev.Action = model.ActionKeyNotFound
				ev.Reason = string(lifecycle.ReasonNotFound)
				ev.Timestamp = s.engine.Time()
				return uow.AuditLog().Append(ev)
			}

			d := s.engine.Login(key, req.HWID)
			ev.Timestamp = s.engine.Time()
			if d.Accept {
				if err = uow.Keys().Update(key); err != nil {
					return err
				}
				ev.Action = model.ActionLoginSuccess
				ev.Success = true
				res.Success = true
				res.FirstUse = d.FirstUse
				res.FirstLoginAt = key.FirstLoginAt
				res.ExpiresAt = key.ExpiresAt
			} else {
				ev.Action = model.ActionLoginFailed
				ev.Reason = string(d.Reason)
				res.Reason = d.Reason
			}
			status := s.engine.Status(key)
			res.Status = &status
			return uow.AuditLog().Append(ev)
		},
	)
	if err != nil {
		metrics.ObserveLogin(metrics.ResultError, "", started)
		log.WithError(err).WithField("key_id", req.Key).Error("login failed with a store error")
		return nil, err
	}
	s.changed()

	entry := log.WithFields(
		log.Fields{
			"key_id": req.Key,
			"hwid":   hwidPrefix(req.HWID),
			"ip":     req.IPAddress,
		},
	)
	if !res.Success {
		metrics.ObserveLogin(metrics.ResultRejected, string(res.Reason), started)
		entry.WithField("reason", res.Reason).Warn("login rejected")
		return res, nil
	}
	metrics.ObserveLogin(metrics.ResultAccepted, "", started)
	entry.WithField("first_use", res.FirstUse).Info("login accepted")

	if s.receipts != nil {
		res.Receipt, err = s.receipts.Issue(
			receipt.Claims{
				KeyID:        res.KeyID,
				HWID:         req.HWID,
				FirstUse:     res.FirstUse,
				IssuedAt:     s.engine.Time(),
				KeyExpiresAt: res.ExpiresAt,
			},
		)
		if err != nil {
			log.WithError(err).WithField("key_id", req.Key).Error("could not issue login receipt")
		}
	}
	return res, nil
}

// hwidPrefix shortens a hardware id for log output
func hwidPrefix(hwid string) string {
	const n = 6
	r := []rune(hwid)
	if len(r) <= n {
		return hwid
	}
	return string(r[:n]) + "..."
}
