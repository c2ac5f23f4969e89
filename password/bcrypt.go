package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes passwords with bcrypt. It exists for deployments migrating
// account tables whose digests were produced by bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	// bcrypt silently truncates at 72 bytes; refuse instead.
	if len(password) > 72 {
		return "", errors.New("password exceeds bcrypt input limit")
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	if !strings.HasPrefix(encodedHash, "$2") {
		return false, errors.New("invalid bcrypt hash")
	}
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Chain verifies against several hashers and hashes with the first. Stored
// digests are routed by PHC or modular-crypt prefix.
type Chain struct {
	Primary *Argon2
	Legacy  *Bcrypt
}

func (c Chain) Hash(password string) (string, error) {
	return c.Primary.Hash(password)
}

func (c Chain) Verify(password, encodedHash string) (bool, error) {
	if c.Legacy != nil && strings.HasPrefix(encodedHash, "$2") {
		return c.Legacy.Verify(password, encodedHash)
	}
	return c.Primary.Verify(password, encodedHash)
}
