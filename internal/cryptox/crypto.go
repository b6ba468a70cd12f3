// Package cryptox implements the authenticated-encryption primitive used by
// the encrypted object store: AES-GCM with a random nonce prepended to the
// ciphertext. Key management lives in keyx; this package only seals and opens.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/shareguard/shareguard/internal/common"
)

// Encrypt seals plaintext under key using AES-GCM. A fresh random nonce is
// generated per call and prepended to the returned ciphertext, so the result
// is self-contained: nonce || sealed.
//
// The key must be a valid AES key length (16, 24, or 32 bytes).
func Encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed AES-GCM ciphertext produced by Encrypt.
// A wrong key, a truncated input, or any modification of the ciphertext
// yields common.ErrDecryption; altered plaintext is never returned.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", common.ErrDecryption)
	}

	nonce, sealed := ciphertext[:aesgcm.NonceSize()], ciphertext[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	return plaintext, nil
}
