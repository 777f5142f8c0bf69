package storage

import (
	"github.com/pkg/errors"

	"github.com/keygate/keygate/storage/model"
)

// LoginSettings are the runtime settings of the login endpoint that can be
// changed through the admin API
type LoginSettings struct {
	LogNotFound bool `json:"log_not_found"`
}

// GetLoginSettings returns the stored login settings. Values that were never
// stored are taken from defaults.
func GetLoginSettings(kvStorage model.KeyValueStore, defaults LoginSettings) (LoginSettings, error) {
	if kvStorage == nil {
		return defaults, nil
	}
	var logNotFound bool
	found, err := kvStorage.GetAs(model.KeyValueScopeLogin, model.KeyValueKeyLogNotFound, &logNotFound)
	if err != nil {
		return defaults, err
	}
	if found {
		defaults.LogNotFound = logNotFound
	}
	return defaults, nil
}

// SetLoginSettings stores the login settings
func SetLoginSettings(kvStorage model.KeyValueStore, settings LoginSettings) error {
	if kvStorage == nil {
		return errors.New("key value store is not set")
	}
	return kvStorage.SetAny(model.KeyValueScopeLogin, model.KeyValueKeyLogNotFound, settings.LogNotFound)
}
