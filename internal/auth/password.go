package auth

import (
	"errors"

	"github.com/alexedwards/argon2id"
)

// Hasher hashes and verifies passwords with argon2id.
type Hasher struct {
	params *argon2id.Params
}

// NewHasher uses argon2id.DefaultParams when p is nil.
func NewHasher(p *argon2id.Params) *Hasher {
	if p == nil {
		p = argon2id.DefaultParams
	}
	return &Hasher{params: p}
}

// Hash returns an encoded "$argon2id$v=19$m=..." string suitable for storage.
func (h *Hasher) Hash(plain string) (string, error) {
	if h.params == nil {
		return "", errors.New("argon2id params not set")
	}
	return argon2id.CreateHash(plain, h.params)
}

// Compare reports whether plain matches encodedHash.
func (h *Hasher) Compare(plain, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(plain, encodedHash)
}
