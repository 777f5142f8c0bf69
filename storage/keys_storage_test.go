package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/storage/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(
		Config{
			Driver:  DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// seedKeys stores one key per derived status plus a second expired one
func seedKeys(t *testing.T, keys *KeyStorage, now time.Time) []model.LicenseKey {
	t.Helper()
	past := now.Add(-48 * time.Hour)
	seed := []model.LicenseKey{
		{KeyID: "10000001", ExpirationDays: 30, IsActive: true},
		{
			KeyID: "10000002", ExpirationDays: 30, IsActive: true, IsUsed: true, HWID: strPtr("A"),
			FirstLoginAt: timePtr(past), ExpiresAt: timePtr(now.Add(24 * time.Hour)),
		},
		{
			KeyID: "10000003", ExpirationDays: 1, IsActive: true, IsUsed: true, HWID: strPtr("B"),
			FirstLoginAt: timePtr(past), ExpiresAt: timePtr(now.Add(-time.Hour)),
		},
		{KeyID: "10000004", ExpirationDays: 30, IsActive: true, IsPaused: true},
		{
			KeyID: "10000005", ExpirationDays: 30, IsActive: false, IsPaused: true, IsUsed: true, HWID: strPtr("C"),
			FirstLoginAt: timePtr(past), ExpiresAt: timePtr(now.Add(-time.Hour)),
		},
		{
			KeyID: "20000006", ExpirationDays: 1, IsActive: true, IsPaused: true, IsUsed: true, HWID: strPtr("D"),
			FirstLoginAt: timePtr(past), ExpiresAt: timePtr(now.Add(-time.Hour)),
		},
	}
	for i := range seed {
		require.NoError(t, keys.Create(&seed[i]))
	}
	return seed
}

func TestKeyStorage_CreateGet(t *testing.T) {
	keys := newTestStorage(t).KeyStorage()
	key := &model.LicenseKey{KeyID: "00000042", ExpirationDays: 7, IsActive: true}
	require.NoError(t, keys.Create(key))

	got, err := keys.Get("00000042")
	require.NoError(t, err)
	assert.Equal(t, 7, got.ExpirationDays)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsUsed)
	assert.Nil(t, got.HWID)
	assert.False(t, got.CreatedAt.IsZero())

	err = keys.Create(&model.LicenseKey{KeyID: "00000042", ExpirationDays: 1, IsActive: true})
	assert.True(t, model.IsAlreadyExists(err))

	_, err = keys.Get("99999999")
	assert.True(t, model.IsNotFound(err))

	exists, err := keys.Exists("00000042")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestKeyStorage_UpdateVersion(t *testing.T) {
	keys := newTestStorage(t).KeyStorage()
	require.NoError(t, keys.Create(&model.LicenseKey{KeyID: "11111111", ExpirationDays: 30, IsActive: true}))

	first, err := keys.Get("11111111")
	require.NoError(t, err)
	second, err := keys.Get("11111111")
	require.NoError(t, err)

	now := time.Now().UTC()
	first.IsUsed = true
	first.HWID = strPtr("hwid-a")
	first.FirstLoginAt = &now
	require.NoError(t, keys.Update(first))
	assert.Equal(t, uint(1), first.Version)

	second.IsUsed = true
	second.HWID = strPtr("hwid-b")
	assert.ErrorIs(t, keys.Update(second), model.ErrVersionConflict)

	stored, err := keys.Get("11111111")
	require.NoError(t, err)
	assert.Equal(t, "hwid-a", stored.BoundHWID())

	// clearing pointers writes NULL
	stored.IsUsed = false
	stored.HWID = nil
	stored.FirstLoginAt = nil
	require.NoError(t, keys.Update(stored))
	stored, err = keys.Get("11111111")
	require.NoError(t, err)
	assert.Nil(t, stored.HWID)
	assert.Nil(t, stored.FirstLoginAt)

	err = keys.Update(&model.LicenseKey{KeyID: "22222222"})
	assert.True(t, model.IsNotFound(err))
}

func TestKeyStorage_HWIDColumn(t *testing.T) {
	s := newTestStorage(t)
	assert.True(t, s.db.Migrator().HasColumn(&model.LicenseKey{}, "hwid"))
	assert.True(t, s.db.Migrator().HasColumn(&model.AuditEvent{}, "hwid"))

	keys := s.KeyStorage()
	require.NoError(t, keys.Create(&model.LicenseKey{KeyID: "11111111", ExpirationDays: 30, IsActive: true}))
	key, err := keys.Get("11111111")
	require.NoError(t, err)
	key.IsUsed = true
	key.HWID = strPtr("hwid-a")
	require.NoError(t, keys.Update(key))

	var stored string
	require.NoError(t, s.db.Raw("SELECT hwid FROM license_keys WHERE key_id = ?", "11111111").Scan(&stored).Error)
	assert.Equal(t, "hwid-a", stored)

	key.HWID = nil
	key.IsUsed = false
	require.NoError(t, keys.Update(key))
	key, err = keys.Get("11111111")
	require.NoError(t, err)
	assert.Nil(t, key.HWID)
}

func TestKeyStorage_PastExpiry(t *testing.T) {
	keys := newTestStorage(t).KeyStorage()
	now := time.Now().UTC()
	seedKeys(t, keys, now)

	n, err := keys.Count(model.KeyQuery{PastExpiry: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestKeyStorage_DeleteCascades(t *testing.T) {
	s := newTestStorage(t)
	keys, audit := s.KeyStorage(), s.AuditStorage()
	require.NoError(t, keys.Create(&model.LicenseKey{KeyID: "12121212", ExpirationDays: 30, IsActive: true}))
	require.NoError(t, keys.Create(&model.LicenseKey{KeyID: "34343434", ExpirationDays: 30, IsActive: true}))
	require.NoError(
		t, audit.Append(
			&model.AuditEvent{KeyID: "12121212", Action: model.ActionKeyCreated, Success: true, Timestamp: time.Now()},
			&model.AuditEvent{KeyID: "34343434", Action: model.ActionKeyCreated, Success: true, Timestamp: time.Now()},
		),
	)

	require.NoError(t, keys.Delete("12121212"))
	events, err := audit.ListByKey("12121212", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	events, err = audit.ListByKey("34343434", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	assert.True(t, model.IsNotFound(keys.Delete("12121212")))

	n, err := keys.DeleteAll()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	total, err := audit.Count(model.AuditQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestKeyStorage_DeleteAllEmpty(t *testing.T) {
	n, err := newTestStorage(t).KeyStorage().DeleteAll()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeyStorage_StatusFiltersMatchDerivedStatus(t *testing.T) {
	keys := newTestStorage(t).KeyStorage()
	now := time.Now().UTC()
	seed := seedKeys(t, keys, now)

	filters := []model.StatusFilter{
		model.FilterNone, model.FilterActive, model.FilterPaused, model.FilterInactive,
		model.FilterUnused, model.FilterExpired, model.FilterUsed,
	}
	for _, f := range filters {
		t.Run(
			string(f), func(t *testing.T) {
				var want []string
				for _, k := range seed {
					if f.Matches(k.StatusAt(now), k.IsUsed) {
						want = append(want, k.KeyID)
					}
				}
				got, err := keys.IDs(model.KeyQuery{Status: f, Now: now})
				require.NoError(t, err)
				assert.ElementsMatch(t, want, got)

				count, err := keys.Count(model.KeyQuery{Status: f, Now: now})
				require.NoError(t, err)
				assert.Equal(t, int64(len(want)), count)
			},
		)
	}
}

func TestKeyStorage_ListSearchAndPaging(t *testing.T) {
	keys := newTestStorage(t).KeyStorage()
	for i := 0; i < 25; i++ {
		require.NoError(
			t, keys.Create(&model.LicenseKey{KeyID: fmt.Sprintf("5%07d", i), ExpirationDays: 30, IsActive: true}),
		)
	}
	require.NoError(t, keys.Create(&model.LicenseKey{KeyID: "77777777", ExpirationDays: 30, IsActive: true}))

	page, total, err := keys.List(model.KeyQuery{}, model.Page{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(26), total)
	require.Len(t, page, 10)
	assert.Equal(t, "77777777", page[0].KeyID)

	page, total, err = keys.List(model.KeyQuery{}, model.Page{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(26), total)
	assert.Len(t, page, 6)

	page, total, err = keys.List(model.KeyQuery{Search: "0000001"}, model.Page{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, "50000001", page[0].KeyID)
}

func TestKeyStorage_BulkSetPaused(t *testing.T) {
	keys := newTestStorage(t).KeyStorage()
	now := time.Now().UTC()
	seedKeys(t, keys, now)

	// 10000001, 10000002, 10000003 are active and not paused
	n, err := keys.BulkSetPaused(model.KeyQuery{ActiveOnly: true}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	inactive, err := keys.Get("10000005")
	require.NoError(t, err)
	assert.True(t, inactive.IsPaused)
	assert.Equal(t, uint(0), inactive.Version)

	paused, err := keys.Count(model.KeyQuery{Status: model.FilterPaused, Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(5), paused)

	n, err = keys.BulkSetPaused(model.KeyQuery{ActiveOnly: true}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	k, err := keys.Get("10000002")
	require.NoError(t, err)
	assert.False(t, k.IsPaused)
	assert.Equal(t, uint(2), k.Version)
}
