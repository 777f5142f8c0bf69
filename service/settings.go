package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/storage"
)

// LoadSettings applies the settings stored in the database over the
// configured defaults
func (s *Service) LoadSettings(ctx context.Context) error {
	settings, err := s.LoginSettings(ctx)
	if err != nil {
		return err
	}
	s.logNotFound.Store(settings.LogNotFound)
	return nil
}

// LoginSettings returns the current login settings
func (s *Service) LoginSettings(ctx context.Context) (storage.LoginSettings, error) {
	return storage.GetLoginSettings(
		s.tx.Session(ctx).KV(), storage.LoginSettings{LogNotFound: s.logNotFound.Load()},
	)
}

// UpdateLoginSettings stores new login settings and applies them immediately
func (s *Service) UpdateLoginSettings(ctx context.Context, settings storage.LoginSettings) error {
	if err := storage.SetLoginSettings(s.tx.Session(ctx).KV(), settings); err != nil {
		return err
	}
	s.logNotFound.Store(settings.LogNotFound)
	log.WithField("log_not_found", settings.LogNotFound).Info("updated login settings")
	return nil
}
