// Package auth implements the two authentication paths the connection
// state machine's Authenticating state drives: a plain
// username/password check carried in the authentication frame, and a JWT
// bearer token for the CLOUD_CON path used by cloud-facing connections.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost balances hashing latency against brute-force cost
	// for devices that authenticate infrequently, at connection setup only.
	DefaultBcryptCost = 10

	// MinPasswordLength and MaxPasswordLength bound accepted passwords;
	// bcrypt silently truncates beyond 72 bytes, so longer inputs are
	// rejected explicitly instead of being hashed incorrectly.
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort  = errors.New("auth: password must be at least 8 characters")
	ErrPasswordTooLong   = errors.New("auth: password must be at most 72 characters")
	ErrInvalidCredential = errors.New("auth: invalid username or password")
)

// HashPassword bcrypt-hashes password for storage in AuthConfig.PasswordHash.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the length bounds bcrypt and usability impose.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// PasswordAuthenticator checks the username/password pair an AuthFrame
// carries (internal/wire.AuthFrame) against a single configured identity,
// the authentication model used for non-cloud connections.
type PasswordAuthenticator struct {
	username     string
	passwordHash string
}

// NewPasswordAuthenticator builds an authenticator for one device identity.
func NewPasswordAuthenticator(username, passwordHash string) *PasswordAuthenticator {
	return &PasswordAuthenticator{username: username, passwordHash: passwordHash}
}

// Authenticate reports whether username/password match the configured
// identity, returning ErrInvalidCredential otherwise.
func (a *PasswordAuthenticator) Authenticate(username, password string) error {
	if username != a.username || !VerifyPassword(password, a.passwordHash) {
		return ErrInvalidCredential
	}
	return nil
}
