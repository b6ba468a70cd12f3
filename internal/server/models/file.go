package models

import "time"

// File describes metadata for an encrypted file. The ciphertext itself is
// stored in object storage under StoredName; the per-file encryption key is
// rendered into KeyRef and exists nowhere else.
type File struct {
	ID string
	// StoredName is the opaque object-storage name of the ciphertext blob.
	// It is chosen by the server and independent of any user-supplied name.
	StoredName string
	// OriginalName is the name the file was uploaded under.
	OriginalName string
	MimeType     string
	// Size is the plaintext size in bytes.
	Size int64
	// KeyRef is the rendered per-file encryption key. Set exactly once at
	// creation, after the blob has been durably written.
	KeyRef string
	// ClientKey is opaque client-supplied key material, passed through
	// unmodified. Empty when the client sent none.
	ClientKey string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
