package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

type HashAlgo string

const (
	HashAlgoSHA256 HashAlgo = "sha256"
	HashAlgoBLAKE3 HashAlgo = "blake3"
)

// pageIDSize is the digest length, in bytes, of a page identifier.
const pageIDSize = 16

// HashBytes returns the hex digest of data using algo.
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	switch algo {
	case HashAlgoSHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case HashAlgoBLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// PageID derives a stable identifier for a normalized page URL:
// a 128-bit BLAKE3 digest, hex encoded.
func PageID(normalizedURL string) string {
	sum := blake3.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:pageIDSize])
}
