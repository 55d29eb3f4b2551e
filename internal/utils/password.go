package utils

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/fadedrop/fadedrop/internal/models"
)

const (
	// PBKDF2 parameters for newly hashed passwords. Verification always
	// uses the parameters stored on the record, so these can change
	// without invalidating existing uploads.
	passwordIterations = 100000
	passwordKeyLen     = 64
	passwordSaltBytes  = 16
	passwordAlgorithm  = "pbkdf2"
	passwordDigest     = "sha512"
)

// HashPassword derives a PBKDF2 hash from a plain text password with a
// fresh random salt and returns it with all parameters needed to verify.
func HashPassword(password string) (*models.PasswordHash, error) {
	salt := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate password salt: %w", err)
	}

	derived := pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeyLen, sha512.New)

	return &models.PasswordHash{
		Algorithm:  passwordAlgorithm,
		Iterations: passwordIterations,
		KeyLen:     passwordKeyLen,
		Digest:     passwordDigest,
		Salt:       hex.EncodeToString(salt),
		Hash:       hex.EncodeToString(derived),
	}, nil
}

// VerifyPassword re-derives the hash using the parameters stored on the
// record and compares against the stored digest. Returns false for any
// malformed stored hash rather than an error; the derivation itself is the
// slow step, so a plain constant-time compare of the result is sufficient.
func VerifyPassword(password string, stored *models.PasswordHash) bool {
	if stored == nil {
		return false
	}
	if stored.Algorithm != passwordAlgorithm || stored.Digest != passwordDigest {
		return false
	}

	salt, err := hex.DecodeString(stored.Salt)
	if err != nil {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, stored.Iterations, stored.KeyLen, sha512.New)
	candidate := hex.EncodeToString(derived)

	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored.Hash)) == 1
}
