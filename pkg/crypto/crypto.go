// Package crypto provides password hashing for the user directory.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("crypto: malformed password hash")

// Argon2id parameters. Changing these invalidates no stored hashes: the
// verifier only supports this one parameter set, identified by the prefix.
const (
	saltLen    = 16
	keyLen     = 32
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4

	hashPrefix = "argon2id"
)

// HashPassword derives an argon2id hash from a password with a fresh random
// salt. The result is a self-contained string "argon2id$<salt>$<key>" (hex
// fields, no '|' characters, safe for the pipe-delimited user store).
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMem, argonLanes, keyLen)
	return hashPrefix + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches the encoded hash.
// Malformed hashes verify as false with an error; a clean mismatch is
// (false, nil).
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return false, ErrMalformedHash
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil || len(salt) != saltLen {
		return false, ErrMalformedHash
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) != keyLen {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, argonTime, argonMem, argonLanes, keyLen)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
