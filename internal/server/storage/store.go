// Package storage implements the encrypted object store: authenticated
// encryption on write, decryption and integrity verification on read, over a
// pluggable blob backend.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shareguard/shareguard/internal/cryptox"
	"github.com/shareguard/shareguard/internal/keyx"
	"github.com/shareguard/shareguard/internal/server/blob"
)

// Store encrypts plaintext before it reaches the blob backend and decrypts
// on the way out. It never persists or logs key material.
type Store struct {
	backend blob.Storage
}

func NewStore(backend blob.Storage) *Store {
	return &Store{backend: backend}
}

// randomBlobName assigns a fresh unguessable storage name, grouped by upload
// date. The name carries nothing derived from user input, so user-supplied
// file names can neither collide nor traverse paths.
func randomBlobName() string {
	d := time.Now()
	return fmt.Sprintf("files/%d/%02d/%v", d.Year(), int(d.Month()), uuid.New())
}

// Put encrypts plaintext under key and writes it durably, returning the
// blob name to record in the file registry.
func (s *Store) Put(ctx context.Context, plaintext []byte, key keyx.Key) (string, error) {
	ciphertext, err := cryptox.Encrypt(plaintext, key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	name := randomBlobName()
	if err := s.backend.Put(ctx, name, ciphertext); err != nil {
		return "", fmt.Errorf("blob write: %w", err)
	}
	return name, nil
}

// Get reads and decrypts the named blob. Tampered ciphertext or a wrong key
// surfaces as common.ErrDecryption.
func (s *Store) Get(ctx context.Context, name string, key keyx.Key) ([]byte, error) {
	ciphertext, err := s.backend.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("blob read: %w", err)
	}
	return cryptox.Decrypt(ciphertext, key)
}

// Delete is a best-effort physical delete, idempotent per the backend
// contract.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, name)
}

// ListBlobs exposes the backend listing for the orphan sweep.
func (s *Store) ListBlobs(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx)
}
