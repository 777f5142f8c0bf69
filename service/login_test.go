package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/receipt"
	"github.com/keygate/keygate/lifecycle"
	"github.com/keygate/keygate/storage/model"
)

func TestLoginScenario(t *testing.T) {
	env := defaultEnv(t)
	id := env.createKey(t, 30)
	t0 := env.clock.Now()

	res := env.login(t, id, "A")
	assert.True(t, res.Success)
	assert.True(t, res.FirstUse)
	require.NotNil(t, res.Status)
	assert.Equal(t, model.StatusActive, *res.Status)
	require.NotNil(t, res.ExpiresAt)
	assert.True(t, t0.Add(30*24*time.Hour).Equal(*res.ExpiresAt))

	stored := env.key(t, id)
	assert.True(t, stored.IsUsed)
	assert.Equal(t, "A", stored.BoundHWID())
	assert.True(t, t0.Add(30*24*time.Hour).Equal(*stored.ExpiresAt))

	env.clock.advance(10 * 24 * time.Hour)
	res = env.login(t, id, "B")
	assert.False(t, res.Success)
	assert.Equal(t, lifecycle.ReasonHWIDMismatch, res.Reason)

	res = env.login(t, id, "A")
	assert.True(t, res.Success)
	assert.False(t, res.FirstUse)

	env.clock.advance(21 * 24 * time.Hour)
	res = env.login(t, id, "A")
	assert.False(t, res.Success)
	assert.Equal(t, lifecycle.ReasonExpired, res.Reason)

	// expired keys stay in the store
	stored = env.key(t, id)
	assert.Equal(t, int64(2), stored.LoginCount)

	events := env.events(t, id)
	require.Len(t, events, 5)
	assert.Equal(t, model.ActionLoginFailed, events[0].Action)
	assert.Equal(t, "expired", events[0].Reason)
	assert.Equal(t, model.ActionLoginSuccess, events[1].Action)
	assert.Equal(t, model.ActionLoginFailed, events[2].Action)
	assert.Equal(t, "hwid mismatch", events[2].Reason)
	assert.Equal(t, "B", events[2].HWID)
	assert.Equal(t, model.ActionLoginSuccess, events[3].Action)
	assert.Equal(t, "203.0.113.9", events[3].IPAddress)
	assert.Equal(t, "client/1.0", events[3].UserAgent)
	assert.Equal(t, model.ActionKeyCreated, events[4].Action)
}

func TestLoginPausedKey(t *testing.T) {
	env := defaultEnv(t)
	ctx := context.Background()
	id := env.createKey(t, 30)
	require.True(t, env.login(t, id, "A").Success)

	_, err := env.svc.SetPaused(ctx, id, true)
	require.NoError(t, err)
	res := env.login(t, id, "A")
	assert.False(t, res.Success)
	assert.Equal(t, lifecycle.ReasonPaused, res.Reason)

	env.clock.advance(60 * 24 * time.Hour)
	res = env.login(t, id, "A")
	assert.Equal(t, lifecycle.ReasonPaused, res.Reason)
}

func TestLoginInactiveKey(t *testing.T) {
	env := defaultEnv(t)
	id := env.createKey(t, 30)
	_, err := env.svc.SetActive(context.Background(), id, false)
	require.NoError(t, err)
	res := env.login(t, id, "A")
	assert.Equal(t, lifecycle.ReasonInactive, res.Reason)
	assert.False(t, env.key(t, id).IsUsed)
}

func TestLoginNotFound(t *testing.T) {
	for _, logNotFound := range []bool{true, false} {
		conf := DefaultConfig()
		conf.LogNotFound = logNotFound
		conf.StatsLifetime = 0
		env := newTestEnv(t, conf)

		res := env.login(t, "87654321", "A")
		assert.False(t, res.Success)
		assert.Equal(t, lifecycle.ReasonNotFound, res.Reason)
		assert.Nil(t, res.Status)

		events := env.events(t, "87654321")
		if logNotFound {
			require.Len(t, events, 1)
			assert.Equal(t, model.ActionKeyNotFound, events[0].Action)
			assert.False(t, events[0].Success)
		} else {
			assert.Empty(t, events)
		}
	}
}

func TestLoginValidation(t *testing.T) {
	env := defaultEnv(t)
	tests := []LoginRequest{
		{Key: "1234567", HWID: "A"},
		{Key: "123456789", HWID: "A"},
		{Key: "1234567a", HWID: "A"},
		{Key: "-1234567", HWID: "A"},
		{Key: "12345678", HWID: ""},
		{Key: "", HWID: "A"},
	}
	for _, req := range tests {
		_, err := env.svc.Login(context.Background(), req)
		assert.True(t, IsValidationError(err), "%+v: %v", req, err)
	}
	assert.Zero(t, env.loginEvents(t))
}

func TestLoginHWIDIsOpaque(t *testing.T) {
	env := defaultEnv(t)
	id := env.createKey(t, 30)

	res := env.login(t, " "+id+" ", " HW-A ")
	require.True(t, res.Success)
	assert.Equal(t, " HW-A ", env.key(t, id).BoundHWID())

	res = env.login(t, id, "HW-A")
	assert.False(t, res.Success)
	assert.Equal(t, lifecycle.ReasonHWIDMismatch, res.Reason)
	assert.True(t, env.login(t, id, " HW-A ").Success)

	blank := env.createKey(t, 30)
	assert.True(t, env.login(t, blank, "   ").Success)
	assert.Equal(t, "   ", env.key(t, blank).BoundHWID())
}

func TestLoginResetRoundTrip(t *testing.T) {
	env := defaultEnv(t)
	ctx := context.Background()
	id := env.createKey(t, 7)
	require.True(t, env.login(t, id, "A").Success)

	env.clock.advance(3 * 24 * time.Hour)
	view, err := env.svc.ResetHWID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnused, view.Status)
	assert.Nil(t, view.HWID)
	assert.Nil(t, view.ExpiresAt)

	res := env.login(t, id, "B")
	assert.True(t, res.Success)
	assert.True(t, res.FirstUse)
	assert.True(t, env.clock.Now().Add(7*24*time.Hour).Equal(*res.ExpiresAt))
	assert.Equal(t, "B", env.key(t, id).BoundHWID())
	assert.Equal(t, lifecycle.ReasonHWIDMismatch, env.login(t, id, "A").Reason)
}

func TestConcurrentFirstUse(t *testing.T) {
	env := defaultEnv(t)
	id := env.createKey(t, 30)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*LoginResult, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.Login(
				context.Background(), LoginRequest{
					Key:  id,
					HWID: string(rune('A' + i)),
				},
			)
		}(i)
	}
	wg.Wait()

	accepted := 0
	var winner string
	for i, res := range results {
		require.NoError(t, errs[i])
		if res.Success {
			accepted++
			assert.True(t, res.FirstUse)
			winner = string(rune('A' + i))
		} else {
			assert.Equal(t, lifecycle.ReasonHWIDMismatch, res.Reason)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, winner, env.key(t, id).BoundHWID())
	assert.Equal(t, int64(n), env.loginEvents(t))
}

// conflictingTx fails the first n key updates with a version conflict
type conflictingTx struct {
	model.Transactor
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingTx) Transaction(ctx context.Context, fn func(model.UnitOfWork) error) error {
	return c.Transactor.Transaction(
		ctx, func(uow model.UnitOfWork) error {
			return fn(conflictingUOW{UnitOfWork: uow, tx: c})
		},
	)
}

type conflictingUOW struct {
	model.UnitOfWork
	tx *conflictingTx
}

func (u conflictingUOW) Keys() model.KeyStore {
	return conflictingKeys{KeyStore: u.UnitOfWork.Keys(), tx: u.tx}
}

type conflictingKeys struct {
	model.KeyStore
	tx *conflictingTx
}

func (k conflictingKeys) Update(key *model.LicenseKey) error {
	k.tx.mu.Lock()
	defer k.tx.mu.Unlock()
	if k.tx.conflicts > 0 {
		k.tx.conflicts--
		return model.ErrVersionConflict
	}
	return k.KeyStore.Update(key)
}

func TestLoginRetriesOnConflict(t *testing.T) {
	env := defaultEnv(t)
	id := env.createKey(t, 30)
	tx := &conflictingTx{Transactor: env.store, conflicts: 2}
	svc := New(tx, DefaultConfig(), WithEngine(env.svc.Engine()))

	res, err := svc.Login(context.Background(), LoginRequest{Key: id, HWID: "A"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, tx.conflicts)
	assert.Equal(t, int64(1), env.loginEvents(t))

	tx.conflicts = 10
	_, err = svc.Login(context.Background(), LoginRequest{Key: id, HWID: "A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrVersionConflict)
	assert.Equal(t, int64(1), env.loginEvents(t), "a failed unit of work must not leave an audit event")
	assert.Equal(t, int64(1), env.key(t, id).LoginCount)
}

func TestLoginSettingsApplyImmediately(t *testing.T) {
	env := defaultEnv(t)
	ctx := context.Background()
	settings, err := env.svc.LoginSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.LogNotFound)

	settings.LogNotFound = false
	require.NoError(t, env.svc.UpdateLoginSettings(ctx, settings))
	env.login(t, "11112222", "A")
	assert.Empty(t, env.events(t, "11112222"))

	// a fresh service picks the stored value up over its default
	other := New(env.store, DefaultConfig())
	require.NoError(t, other.LoadSettings(ctx))
	assert.False(t, other.logNotFound.Load())
}

func TestLoginReceipt(t *testing.T) {
	signer, err := receipt.NewSigner(
		receipt.Config{
			Alg:          "ES256",
			KeyFile:      filepath.Join(t.TempDir(), "receipt.pem"),
			AutoGenerate: true,
			Lifetime:     time.Hour,
		},
	)
	require.NoError(t, err)
	conf := DefaultConfig()
	conf.StatsLifetime = 0
	env := newTestEnv(t, conf, WithReceipts(signer))
	id := env.createKey(t, 30)

	res := env.login(t, id, "A")
	require.True(t, res.Success)
	require.NotEmpty(t, res.Receipt)
	pub, _ := signer.JWKS().Key(0)
	_, err = jws.Verify([]byte(res.Receipt), jws.WithKey(signer.Alg(), pub))
	assert.NoError(t, err)

	assert.Empty(t, env.login(t, id, "B").Receipt)
}

func TestHWIDPrefix(t *testing.T) {
	assert.Equal(t, "abc", hwidPrefix("abc"))
	assert.Equal(t, "abcdef...", hwidPrefix("abcdefghijkl"))
	assert.Equal(t, "äöüßéè...", hwidPrefix("äöüßéèñ"))
	assert.Equal(t, "日本語", hwidPrefix("日本語"))
}
