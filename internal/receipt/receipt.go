// Package receipt issues signed login receipts. A receipt is a JWT a client
// can verify offline against the published key set.
package receipt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
)

// Config configures a Signer
type Config struct {
	Alg          string
	KeyFile      string
	AutoGenerate bool
	Lifetime     time.Duration
	Issuer       string
}

// Signer signs receipts with a single private key
type Signer struct {
	alg      jwa.SignatureAlgorithm
	key      jwk.Key
	public   jwk.Set
	issuer   string
	lifetime time.Duration
}

// Claims are the contents of a receipt
type Claims struct {
	KeyID        string
	HWID         string
	FirstUse     bool
	IssuedAt     time.Time
	KeyExpiresAt *time.Time
}

// NewSigner loads the signing key from conf.KeyFile, generating it first if
// it does not exist and conf.AutoGenerate is set
func NewSigner(conf Config) (*Signer, error) {
	alg, ok := jwa.LookupSignatureAlgorithm(conf.Alg)
	if !ok {
		return nil, errors.Errorf("unsupported signing algorithm '%s'", conf.Alg)
	}
	if conf.KeyFile == "" {
		return nil, errors.New("no receipt key file configured")
	}
	if !fileutils.FileExists(conf.KeyFile) {
		if !conf.AutoGenerate {
			return nil, errors.Errorf("receipt key file '%s' does not exist", conf.KeyFile)
		}
		if err := generateKeyFile(alg, conf.KeyFile); err != nil {
			return nil, err
		}
		log.WithField("file", conf.KeyFile).Info("Generated receipt signing key")
	}
	data, err := os.ReadFile(conf.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not read receipt key file")
	}
	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse receipt key")
	}
	return newSigner(alg, key, conf)
}

func newSigner(alg jwa.SignatureAlgorithm, key jwk.Key, conf Config) (*Signer, error) {
	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	kid := base64.RawURLEncoding.EncodeToString(thumbprint)
	if err = key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, errors.WithStack(err)
	}
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not derive public receipt key")
	}
	for name, value := range map[string]any{
		jwk.KeyIDKey:     kid,
		jwk.AlgorithmKey: alg,
		jwk.KeyUsageKey:  "sig",
	} {
		if err = pub.Set(name, value); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	set := jwk.NewSet()
	if err = set.AddKey(pub); err != nil {
		return nil, errors.WithStack(err)
	}
	lifetime := conf.Lifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &Signer{
		alg:      alg,
		key:      key,
		public:   set,
		issuer:   conf.Issuer,
		lifetime: lifetime,
	}, nil
}

// Alg returns the signing algorithm
func (s *Signer) Alg() jwa.SignatureAlgorithm {
	return s.alg
}

// Issue returns a compact signed receipt. It expires after the configured
// lifetime or with the license key, whichever comes first.
func (s *Signer) Issue(c Claims) (string, error) {
	exp := c.IssuedAt.Add(s.lifetime)
	if c.KeyExpiresAt != nil && c.KeyExpiresAt.Before(exp) {
		exp = *c.KeyExpiresAt
	}
	b := jwt.NewBuilder().
		Subject(c.KeyID).
		IssuedAt(c.IssuedAt).
		Expiration(exp).
		Claim("hwid", c.HWID).
		Claim("first_use", c.FirstUse)
	if s.issuer != "" {
		b = b.Issuer(s.issuer)
	}
	if c.KeyExpiresAt != nil {
		b = b.Claim("key_expires_at", c.KeyExpiresAt.Unix())
	}
	tok, err := b.Build()
	if err != nil {
		return "", errors.Wrap(err, "could not build receipt")
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(s.alg, s.key))
	if err != nil {
		return "", errors.Wrap(err, "could not sign receipt")
	}
	return string(signed), nil
}

// JWKS returns the public key set used to verify receipts
func (s *Signer) JWKS() jwk.Set {
	return s.public
}

// JWKSJSON returns the JSON encoding of JWKS
func (s *Signer) JWKSJSON() ([]byte, error) {
	return json.Marshal(s.public)
}

func generatePrivateKey(alg jwa.SignatureAlgorithm) (crypto.Signer, error) {
	switch alg {
	case jwa.ES256():
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case jwa.ES384():
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case jwa.ES512():
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case jwa.EdDSA():
		_, sk, err := ed25519.GenerateKey(rand.Reader)
		return sk, err
	case jwa.RS256(), jwa.RS384(), jwa.RS512(), jwa.PS256(), jwa.PS384(), jwa.PS512():
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	return nil, errors.Errorf("cannot generate keys for algorithm '%s'", alg)
}

func generateKeyFile(alg jwa.SignatureAlgorithm, path string) error {
	sk, err := generatePrivateKey(alg)
	if err != nil {
		return errors.WithStack(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(sk)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.WithStack(err)
	}
	data := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: der,
		},
	)
	return errors.Wrap(os.WriteFile(path, data, 0o600), "could not write receipt key file")
}
