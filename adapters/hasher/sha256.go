package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/satriahrh/irp-helper/domain"
)

// fingerprintLen is how many hex characters of a digest are shown in logs.
const fingerprintLen = 12

// New returns a domain.Hasher backed by SHA-256.
func New() domain.Hasher { return sha256Hasher{} }

type sha256Hasher struct{}

func (h sha256Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short, log-safe digest prefix of secret. An empty
// secret has no fingerprint.
func Fingerprint(h domain.Hasher, secret string) string {
	if secret == "" {
		return ""
	}
	digest := h.Hash([]byte(secret))
	if len(digest) > fingerprintLen {
		digest = digest[:fingerprintLen]
	}
	return digest
}
