package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		New().Hash([]byte("abc")))
}

func TestFingerprint(t *testing.T) {
	h := New()
	assert.Equal(t, "ba7816bf8f01", Fingerprint(h, "abc"))
	assert.Empty(t, Fingerprint(h, ""))
	assert.NotEqual(t, Fingerprint(h, "key-a"), Fingerprint(h, "key-b"))
}
