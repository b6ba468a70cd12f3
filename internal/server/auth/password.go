package auth

import (
	"encoding/base64"

	"github.com/alexedwards/argon2id"

	"github.com/shareguard/shareguard/internal/common"
)

// HashPassword hashes a plaintext password with argon2id, returning a
// PHC-formatted string ($argon2id$v=19$m=...) suitable for storage.
func HashPassword(plain string) (string, error) {
	return argon2id.CreateHash(plain, argon2id.DefaultParams)
}

// VerifyPassword compares a candidate password against a stored hash.
func VerifyPassword(plain, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(plain, encodedHash)
}

// GeneratePassword returns a strong random password for auto-provisioned
// guest accounts: 24 random bytes, base64url-encoded. The plaintext is
// disclosed exactly once, in the share-verification response that created
// the account.
func GeneratePassword() string {
	return base64.RawURLEncoding.EncodeToString(common.GenerateRandByteArray(24))
}
