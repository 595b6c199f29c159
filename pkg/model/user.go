// Package model defines the core domain types for staffchat.
package model

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MaxUsernameLength = 32
	MaxFieldLength    = 128
)

var (
	ErrUsernameEmpty        = errors.New("username must not be empty")
	ErrUsernameTooLong      = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
	ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")
	ErrFieldTooLong         = fmt.Errorf("profile field must not exceed %d characters", MaxFieldLength)
	ErrFieldInvalidChars    = errors.New("profile field must not contain '|' or line breaks")
)

// UserRecord is a registered directory entry. PasswordHash is the encoded
// argon2id hash, never the plaintext. Online is true iff exactly one live
// session currently holds this username.
type UserRecord struct {
	Username     string
	PasswordHash string
	FullName     string
	Department   string
	Position     string
	Online       bool
}

// Redacted returns a copy safe to hand out of the directory: the password
// hash is cleared.
func (u UserRecord) Redacted() UserRecord {
	u.PasswordHash = ""
	return u
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric,
// underscore, or hyphen characters.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}

// ValidateProfileField checks a free-text profile field (full name,
// department, position). The flat-file store is pipe-delimited and
// line-oriented, so those characters are rejected at the boundary.
func ValidateProfileField(s string) error {
	if len(s) > MaxFieldLength {
		return ErrFieldTooLong
	}
	if strings.ContainsAny(s, "|\r\n") {
		return ErrFieldInvalidChars
	}
	return nil
}
