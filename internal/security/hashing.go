package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password does not match the stored hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// ErrUnsupportedHash is returned when a stored hash is in no format this package knows.
var ErrUnsupportedHash = errors.New("unsupported password hash")

// PasswordHasher hashes and verifies passwords. Callers must not log or
// persist plaintext passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
}

// Hasher hashes and verifies passwords using bcrypt.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4–31.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil if password matches hash and ErrPasswordMismatch if it does not.
func (h *Hasher) Compare(hash string, password []byte) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), password)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

const argon2ID = "argon2id"

// Argon2Hasher hashes passwords with argon2id and stores them in PHC string format.
type Argon2Hasher struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// NewArgon2Hasher returns an Argon2Hasher with interactive-login parameters (64 MiB, t=3, p=2).
func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Hash returns the PHC encoding of password.
func (a *Argon2Hasher) Hash(password []byte) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, a.Time, a.Memory, a.Parallelism, a.KeyLength)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID, argon2.Version, a.Memory, a.Time, a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare recomputes the key with the parameters stored in hash.
func (a *Argon2Hasher) Compare(hash string, password []byte) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2ID {
		return ErrUnsupportedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrUnsupportedHash
	}
	var memory, time uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return ErrUnsupportedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrUnsupportedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return ErrUnsupportedHash
	}
	got := argon2.IDKey(password, salt, time, memory, parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// MultiHasher hashes with Primary and verifies any hash produced by bcrypt or argon2id,
// so stored credentials keep working when the configured algorithm changes.
type MultiHasher struct {
	Primary PasswordHasher
	Bcrypt  *Hasher
	Argon2  *Argon2Hasher
}

// NewPasswordHasher returns a MultiHasher whose primary algorithm is named by algorithm
// ("bcrypt" or "argon2id").
func NewPasswordHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	m := &MultiHasher{Bcrypt: NewHasher(bcryptCost), Argon2: NewArgon2Hasher()}
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "bcrypt":
		m.Primary = m.Bcrypt
	case argon2ID:
		m.Primary = m.Argon2
	default:
		return nil, fmt.Errorf("security: unknown password hasher %q", algorithm)
	}
	return m, nil
}

func (m *MultiHasher) Hash(password []byte) (string, error) {
	return m.Primary.Hash(password)
}

func (m *MultiHasher) Compare(hash string, password []byte) error {
	switch {
	case strings.HasPrefix(hash, "$"+argon2ID+"$"):
		return m.Argon2.Compare(hash, password)
	case strings.HasPrefix(hash, "$2"):
		return m.Bcrypt.Compare(hash, password)
	default:
		return ErrUnsupportedHash
	}
}
