package service

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/storage/model"
)

// KeyStats counts keys per status bucket
type KeyStats struct {
	Total    int64 `json:"total" msgpack:"total"`
	Active   int64 `json:"active" msgpack:"active"`
	Paused   int64 `json:"paused" msgpack:"paused"`
	Inactive int64 `json:"inactive" msgpack:"inactive"`
	Unused   int64 `json:"unused" msgpack:"unused"`
	Used     int64 `json:"used" msgpack:"used"`
	// Expired counts every key past its expiry, including paused and
	// inactive ones
	Expired int64 `json:"expired" msgpack:"expired"`
}

// LoginStats counts login attempts
type LoginStats struct {
	Total      int64 `json:"total" msgpack:"total"`
	Successful int64 `json:"successful" msgpack:"successful"`
	Failed     int64 `json:"failed" msgpack:"failed"`
	// SuccessRate is the percentage of successful logins, rounded to two
	// decimals
	SuccessRate float64 `json:"success_rate" msgpack:"success_rate"`
}

// Stats aggregates keys and login attempts
type Stats struct {
	Keys   KeyStats   `json:"keys" msgpack:"keys"`
	Logins LoginStats `json:"logins" msgpack:"logins"`
}

// Stats returns the current statistics. Results are cached for the
// configured lifetime and invalidated by every change.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if s.conf.StatsLifetime > 0 {
		var cached Stats
		found, err := cache.Get(cache.KeyStats, &cached)
		if err != nil {
			log.WithError(err).Warn("could not read cached statistics")
		} else if found {
			return &cached, nil
		}
	}
	stats, err := s.computeStats(ctx)
	if err != nil {
		return nil, err
	}
	if s.conf.StatsLifetime > 0 {
		if err = cache.Set(cache.KeyStats, stats, s.conf.StatsLifetime); err != nil {
			log.WithError(err).Warn("could not cache statistics")
		}
	}
	return stats, nil
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	uow := s.tx.Session(ctx)
	now := s.engine.Time()
	var stats Stats
	for filter, dst := range map[model.StatusFilter]*int64{
		model.FilterNone:     &stats.Keys.Total,
		model.FilterActive:   &stats.Keys.Active,
		model.FilterPaused:   &stats.Keys.Paused,
		model.FilterInactive: &stats.Keys.Inactive,
		model.FilterUnused:   &stats.Keys.Unused,
		model.FilterUsed:     &stats.Keys.Used,
	} {
		n, err := uow.Keys().Count(
			model.KeyQuery{
				Status: filter,
				Now:    now,
			},
		)
		if err != nil {
			return nil, err
		}
		*dst = n
	}
	expired, err := uow.Keys().Count(
		model.KeyQuery{
			PastExpiry: true,
			Now:        now,
		},
	)
	if err != nil {
		return nil, err
	}
	stats.Keys.Expired = expired

	total, err := uow.AuditLog().Count(model.AuditQuery{Actions: model.LoginActions})
	if err != nil {
		return nil, err
	}
	success := true
	successful, err := uow.AuditLog().Count(
		model.AuditQuery{
			Actions: model.LoginActions,
			Success: &success,
		},
	)
	if err != nil {
		return nil, err
	}
	stats.Logins = LoginStats{
		Total:       total,
		Successful:  successful,
		Failed:      total - successful,
		SuccessRate: successRate(successful, total),
	}
	return &stats, nil
}

func successRate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*10000) / 100
}
