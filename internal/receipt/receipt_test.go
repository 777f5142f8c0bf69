package receipt

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, alg string) *Signer {
	t.Helper()
	s, err := NewSigner(
		Config{
			Alg:          alg,
			KeyFile:      filepath.Join(t.TempDir(), "keys", "receipt.pem"),
			AutoGenerate: true,
			Lifetime:     time.Hour,
			Issuer:       "https://keys.example.org",
		},
	)
	require.NoError(t, err)
	return s
}

func verify(t *testing.T, s *Signer, receipt string) map[string]any {
	t.Helper()
	pub, ok := s.JWKS().Key(0)
	require.True(t, ok)
	payload, err := jws.Verify([]byte(receipt), jws.WithKey(s.Alg(), pub))
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	return claims
}

func TestIssueAndVerify(t *testing.T) {
	for _, alg := range []string{"ES256", "EdDSA"} {
		t.Run(
			alg, func(t *testing.T) {
				s := newTestSigner(t, alg)
				now := time.Now().Truncate(time.Second)
				keyExp := now.Add(30 * 24 * time.Hour)
				receipt, err := s.Issue(
					Claims{
						KeyID:        "12345678",
						HWID:         "hw-1",
						FirstUse:     true,
						IssuedAt:     now,
						KeyExpiresAt: &keyExp,
					},
				)
				require.NoError(t, err)

				claims := verify(t, s, receipt)
				assert.Equal(t, "12345678", claims["sub"])
				assert.Equal(t, "hw-1", claims["hwid"])
				assert.Equal(t, true, claims["first_use"])
				assert.Equal(t, "https://keys.example.org", claims["iss"])
				assert.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])
				assert.EqualValues(t, keyExp.Unix(), claims["key_expires_at"])
			},
		)
	}
}

func TestReceiptExpiresWithKey(t *testing.T) {
	s := newTestSigner(t, "ES256")
	now := time.Now().Truncate(time.Second)
	keyExp := now.Add(10 * time.Minute)
	receipt, err := s.Issue(Claims{KeyID: "12345678", HWID: "hw", IssuedAt: now, KeyExpiresAt: &keyExp})
	require.NoError(t, err)
	claims := verify(t, s, receipt)
	assert.EqualValues(t, keyExp.Unix(), claims["exp"])
}

func TestSignerReloadsKey(t *testing.T) {
	file := filepath.Join(t.TempDir(), "receipt.pem")
	conf := Config{Alg: "ES256", KeyFile: file, AutoGenerate: true}
	first, err := NewSigner(conf)
	require.NoError(t, err)
	conf.AutoGenerate = false
	second, err := NewSigner(conf)
	require.NoError(t, err)

	k1, _ := first.JWKS().Key(0)
	k2, _ := second.JWKS().Key(0)
	kid1, _ := k1.KeyID()
	kid2, _ := k2.KeyID()
	assert.NotEmpty(t, kid1)
	assert.Equal(t, kid1, kid2)

	data, err := second.JWKSJSON()
	require.NoError(t, err)
	set, err := jwk.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	pub, _ := set.Key(0)
	_, hasD := pub.(jwk.ECDSAPrivateKey)
	assert.False(t, hasD)
}

func TestNewSignerErrors(t *testing.T) {
	_, err := NewSigner(Config{Alg: "none-such", KeyFile: "x"})
	assert.Error(t, err)
	_, err = NewSigner(Config{Alg: "ES256", KeyFile: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
	_, err = NewSigner(Config{Alg: "ES256"})
	assert.Error(t, err)
}
