// Package lifecycle implements the state machine of license keys: generation,
// activation, validation, pause and resume, HWID reset and status
// derivation. It never touches storage; callers persist the keys it mutates.
package lifecycle

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"github.com/keygate/keygate/storage/model"
)

// MaxGenerateAttempts bounds the number of identifiers Generate samples
// before giving up
const MaxGenerateAttempts = 100

// ErrKeyspaceExhausted is returned by Generate if no free identifier was
// found within MaxGenerateAttempts samples
var ErrKeyspaceExhausted = errors.New("could not find an unused key identifier")

// Reason explains why a login was rejected
type Reason string

// Rejection reasons
const (
	ReasonInactive     Reason = "inactive"
	ReasonPaused       Reason = "paused"
	ReasonHWIDMismatch Reason = "hwid mismatch"
	ReasonExpired      Reason = "expired"
	ReasonNotFound     Reason = "not found"
)

// Decision is the result of validating a login attempt. Exactly one of
// Accept and Reason is set.
type Decision struct {
	Accept   bool
	FirstUse bool
	Reason   Reason
}

func accept(firstUse bool) Decision {
	return Decision{
		Accept:   true,
		FirstUse: firstUse,
	}
}

func reject(reason Reason) Decision {
	return Decision{Reason: reason}
}

// ExistsFunc reports whether a key identifier is already taken
type ExistsFunc func(keyID string) (bool, error)

// Engine holds the clock and identifier source of the lifecycle. The zero
// value uses the wall clock and math/rand.
type Engine struct {
	Now   func() time.Time
	NewID func() string
}

// NewEngine returns an Engine using the wall clock
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// Time returns the current time of the engine's clock in UTC
func (e *Engine) Time() time.Time {
	return e.now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return RandomID()
}

// RandomID samples a uniformly distributed identifier of
// model.KeyIDLength decimal digits
func RandomID() string {
	return fmt.Sprintf("%08d", rand.IntN(100_000_000))
}

// Generate returns a new unused key with a fresh identifier for which
// exists reports false.
func (e *Engine) Generate(expirationDays int, exists ExistsFunc) (*model.LicenseKey, error) {
	if expirationDays <= 0 {
		return nil, errors.Errorf("expiration period must be positive, got %d", expirationDays)
	}
	for range MaxGenerateAttempts {
		id := e.newID()
		taken, err := exists(id)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		return &model.LicenseKey{
			KeyID:          id,
			ExpirationDays: expirationDays,
			IsActive:       true,
		}, nil
	}
	return nil, ErrKeyspaceExhausted
}

// Activate binds an unused key to hwid and starts its expiration period. It
// reports false and leaves the key untouched if the key is already used.
func (e *Engine) Activate(key *model.LicenseKey, hwid string) bool {
	if key.IsUsed {
		return false
	}
	now := e.now()
	expires := now.Add(time.Duration(key.ExpirationDays) * 24 * time.Hour)
	key.HWID = &hwid
	key.FirstLoginAt = &now
	key.ExpiresAt = &expires
	key.IsUsed = true
	return true
}

// Validate decides a login attempt without modifying the key. The checks are
// evaluated in a fixed order and the first failing one wins.
func (e *Engine) Validate(key *model.LicenseKey, hwid string) Decision {
	switch {
	case !key.IsActive:
		return reject(ReasonInactive)
	case key.IsPaused:
		return reject(ReasonPaused)
	case !key.IsUsed:
		return accept(true)
	case key.BoundHWID() != hwid:
		return reject(ReasonHWIDMismatch)
	case key.ExpiredAt(e.now()):
		return reject(ReasonExpired)
	}
	return accept(false)
}

// Login validates the attempt and, if accepted, activates the key on first
// use and records the login. A rejected attempt leaves the key untouched.
func (e *Engine) Login(key *model.LicenseKey, hwid string) Decision {
	d := e.Validate(key, hwid)
	if !d.Accept {
		return d
	}
	if d.FirstUse {
		e.Activate(key, hwid)
	}
	now := e.now()
	key.LastLoginAt = &now
	key.LoginCount++
	return d
}

// Pause sets the paused flag and reports whether it changed
func Pause(key *model.LicenseKey) bool {
	return setPaused(key, true)
}

// Resume clears the paused flag and reports whether it changed
func Resume(key *model.LicenseKey) bool {
	return setPaused(key, false)
}

func setPaused(key *model.LicenseKey, paused bool) bool {
	if key.IsPaused == paused {
		return false
	}
	key.IsPaused = paused
	return true
}

// SetActive sets the master switch of the key and reports whether it changed
func SetActive(key *model.LicenseKey, active bool) bool {
	if key.IsActive == active {
		return false
	}
	key.IsActive = active
	return true
}

// ResetHWID returns the key to its pre-activation state. The paused and
// active flags are kept.
func ResetHWID(key *model.LicenseKey) {
	key.HWID = nil
	key.FirstLoginAt = nil
	key.ExpiresAt = nil
	key.IsUsed = false
}

// Status returns the derived status of the key at the engine's current time
func (e *Engine) Status(key *model.LicenseKey) model.Status {
	return key.StatusAt(e.now())
}

// Expired reports whether the key's expiration lies in the past
func (e *Engine) Expired(key *model.LicenseKey) bool {
	return key.ExpiredAt(e.now())
}
