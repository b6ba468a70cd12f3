// Package keyx manages per-file encryption keys. Every stored file gets its
// own freshly generated AES-256 key, so compromise of one key is scoped to
// exactly one file. Keys exist in two forms: raw bytes handed to the cipher,
// and a rendered string stored as the file's key reference. Nothing else may
// carry key material.
package keyx

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// KeySize is the raw key length in bytes (AES-256).
const KeySize = 32

// Key is a per-file symmetric encryption key.
type Key []byte

// Generate produces a fresh random key from the system CSPRNG.
func Generate() (Key, error) {
	b := make([]byte, KeySize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("key generation: %w", err)
	}
	return Key(b), nil
}

// Render encodes the key into the string form stored as a file's key
// reference. The encoding is lossless: Parse(Render(k)) == k.
func (k Key) Render() string {
	return base64.RawURLEncoding.EncodeToString(k)
}

// Parse decodes a rendered key reference back into a Key. It rejects
// strings that do not decode to exactly KeySize bytes.
func Parse(s string) (Key, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed key reference: %w", err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("malformed key reference: got %d bytes, want %d", len(b), KeySize)
	}
	return Key(b), nil
}

// Wipe zeroes the key bytes in place.
func (k Key) Wipe() {
	for i := range k {
		k[i] = 0
	}
}
