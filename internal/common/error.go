// Package common defines shared constants and sentinel errors used across
// ShareGuard components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Crypto errors. ErrDecryption covers both a wrong key and a tampered
	// ciphertext; the two are indistinguishable under AEAD and must stay so.
	ErrDecryption = errors.New("decryption failed")

	// Share-grant errors. ErrShareNotFound deliberately covers both a token
	// that never existed and one that has expired, so unauthenticated callers
	// cannot probe which tokens were ever issued.
	ErrShareNotFound  = errors.New("share link is invalid or expired")
	ErrEmailMismatch  = errors.New("email does not match share recipient")
	ErrAlreadyClaimed = errors.New("share already claimed by another account")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
