package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"

	"github.com/keygate/keygate/storage/model"
)

// ErrInvalidCredentials is returned by UsersStorage.Authenticate for a wrong
// password or a disabled account
var ErrInvalidCredentials = errors.New("invalid credentials")

// UsersStorage returns a UsersStorage
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{
		db:     s.db,
		params: s.userParams,
	}
}

// UsersStorage implements model.UsersStore using GORM
type UsersStorage struct {
	db     *gorm.DB
	params Argon2idParams
}

// Count returns the number of admin users
func (s *UsersStorage) Count() (int64, error) {
	var count int64
	err := s.db.Model(&model.User{}).Count(&count).Error
	return count, errors.Wrap(err, "failed to count users")
}

// List returns all admin users without password hashes
func (s *UsersStorage) List() ([]model.User, error) {
	var users []model.User
	if err := s.db.Order("username").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *UsersStorage) find(username string) (*model.User, error) {
	var u model.User
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("user not found: %s", username)
		}
		return nil, errors.Wrap(err, "failed to get user")
	}
	return &u, nil
}

// Get returns a user by username
func (s *UsersStorage) Get(username string) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

// Create creates a user with an argon2id-hashed password
func (s *UsersStorage) Create(username, password, displayName string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	var existing int64
	if err := s.db.Model(&model.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return nil, errors.Wrap(err, "failed to check user")
	}
	if existing > 0 {
		return nil, model.AlreadyExistsErrorFmt("user already exists: %s", username)
	}
	hash, err := hashPassword(password, s.params)
	if err != nil {
		return nil, err
	}
	u := model.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	if err = s.db.Create(&u).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	u.PasswordHash = ""
	return &u, nil
}

// Update changes the display name, password or disabled flag of a user;
// nil arguments are left unchanged
func (s *UsersStorage) Update(username string, displayName, newPassword *string, disabled *bool) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if disabled != nil {
		u.Disabled = *disabled
	}
	if newPassword != nil {
		if *newPassword == "" {
			return nil, errors.New("password cannot be empty")
		}
		if u.PasswordHash, err = hashPassword(*newPassword, s.params); err != nil {
			return nil, err
		}
	}
	if err = s.db.Save(u).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update user")
	}
	u.PasswordHash = ""
	return u, nil
}

// Delete deletes a user by username
func (s *UsersStorage) Delete(username string) error {
	res := s.db.Where("username = ?", username).Delete(&model.User{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete user")
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("user not found: %s", username)
	}
	return nil
}

// Authenticate checks a username and password. The stored hash is upgraded
// when the configured hashing parameters changed.
func (s *UsersStorage) Authenticate(username, password string) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	if u.Disabled {
		return nil, ErrInvalidCredentials
	}
	stored, salt, want, err := decodeHash(u.PasswordHash)
	if err != nil {
		return nil, err
	}
	got := argon2.IDKey([]byte(password), salt, stored.Time, stored.MemoryKiB, stored.Parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrInvalidCredentials
	}
	if stored != s.params {
		if upgraded, err := hashPassword(password, s.params); err == nil {
			_ = s.db.Model(&model.User{}).Where("id = ?", u.ID).Update("password_hash", upgraded).Error
		}
	}
	u.PasswordHash = ""
	return u, nil
}

// hashPassword returns a PHC-formatted argon2id hash:
// $argon2id$v=19$m=<mem>,t=<time>,p=<par>$<salt>$<hash>
func hashPassword(password string, p Argon2idParams) (string, error) {
	if p.Time == 0 {
		p = defaultArgon2idParams()
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.WithStack(err)
	}
	dk := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", p.MemoryKiB, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// decodeHash parses a PHC-formatted argon2id hash
func decodeHash(encoded string) (p Argon2idParams, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		err = errors.New("unsupported password hash format")
		return
	}
	if parts[2] != "v=19" {
		err = errors.New("unsupported argon2 version")
		return
	}
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, _ := strings.Cut(kv, "=")
		var v uint64
		switch name {
		case "m":
			v, err = strconv.ParseUint(value, 10, 32)
			p.MemoryKiB = uint32(v)
		case "t":
			v, err = strconv.ParseUint(value, 10, 32)
			p.Time = uint32(v)
		case "p":
			v, err = strconv.ParseUint(value, 10, 8)
			p.Parallelism = uint8(v)
		}
		if err != nil {
			err = errors.Wrapf(err, "invalid argon2 parameter %q", kv)
			return
		}
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = errors.Wrap(err, "invalid argon2 salt")
		return
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = errors.Wrap(err, "invalid argon2 hash")
		return
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(hash))
	return
}

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
		SaltLen:     16,
	}
}
