package types

import (
	"fmt"
	"strings"
)

// HashMethod is a digest the integrity checksum can be computed with.
type HashMethod string

// Supported hash methods. MD5 is kept for databases created with it.
const (
	HashSHA256     HashMethod = "SHA256"
	HashMD5        HashMethod = "MD5"
	HashSHA3256    HashMethod = "SHA3_256"
	HashBLAKE2b256 HashMethod = "BLAKE2B_256"
)

// HashMethods lists every supported method.
var HashMethods = []HashMethod{HashSHA256, HashMD5, HashSHA3256, HashBLAKE2b256}

// ParseHashMethod accepts a method name case-insensitively, with or without
// separators ("sha-256", "sha3-256").
func ParseHashMethod(s string) (HashMethod, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "SHA256":
		return HashSHA256, nil
	case "MD5":
		return HashMD5, nil
	case "SHA3256":
		return HashSHA3256, nil
	case "BLAKE2B256", "BLAKE2B":
		return HashBLAKE2b256, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHashMethod, s)
	}
}
