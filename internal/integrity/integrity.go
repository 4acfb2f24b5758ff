// Package integrity derives the salted self-check stored in META.SALT_CHECK
// and verifies it at startup.
//
// The checksum hashes the secret with itself as the salt and keeps a hex
// prefix of the digest. Holding the right secret reproduces the stored value;
// the secret never lands in the database.
package integrity

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// newHash returns a fresh digest for the method.
func newHash(m types.HashMethod) (hash.Hash, error) {
	switch m {
	case types.HashSHA256:
		return sha256.New(), nil
	case types.HashMD5:
		return md5.New(), nil
	case types.HashSHA3256:
		return sha3.New256(), nil
	case types.HashBLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedHashMethod, m)
	}
}

// Hash returns hex(H(data || salt)).
func Hash(m types.HashMethod, data, salt string) (string, error) {
	h, err := newHash(m)
	if err != nil {
		return "", err
	}
	h.Write([]byte(data))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Truncate keeps the first n characters. n == 0 or n past the end keeps
// everything.
func Truncate(s string, n int) string {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

// Derive computes the checksum for a secret that is already in hand.
func Derive(m types.HashMethod, key string, truncation int) (string, error) {
	if key == "" {
		return "", types.ErrSaltKeyMissing
	}
	if truncation < 0 {
		return "", fmt.Errorf("%w: truncation_length must be >= 0", types.ErrInvalidConfig)
	}
	sum, err := Hash(m, key, key)
	if err != nil {
		return "", err
	}
	return Truncate(sum, truncation), nil
}

// Checksum resolves the secret from cfg and derives the checksum. It reads
// KeyFile when no inline key is set and touches nothing else.
func Checksum(cfg types.SaltConfig) (string, error) {
	m, err := types.ParseHashMethod(cfg.HashMethod)
	if err != nil {
		return "", err
	}
	key, err := cfg.ResolveKey()
	if err != nil {
		return "", err
	}
	return Derive(m, key, cfg.TruncationLength)
}

// Verify compares a stored SALT_CHECK with a freshly computed one in
// constant time. An empty stored value never verifies.
func Verify(stored, computed string) error {
	if stored == "" {
		return types.ErrIntegrityUnavailable
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) != 1 {
		return types.ErrIntegrityMismatch
	}
	return nil
}
