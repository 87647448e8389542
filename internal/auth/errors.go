package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingCredential is returned when the request carries no bearer token.
var ErrMissingCredential = errors.New("authorization header is missing")

// KeyImportError reports issuer key material that cannot be turned into an RSA verification key.
type KeyImportError struct {
	Err error
}

func (e *KeyImportError) Error() string { return "import issuer public key: " + e.Err.Error() }

func (e *KeyImportError) Unwrap() error { return e.Err }

// TokenInvalidError reports an inbound token that failed signature, temporal or claim checks.
type TokenInvalidError struct {
	Err error
}

func (e *TokenInvalidError) Error() string { return "invalid token: " + e.Err.Error() }

func (e *TokenInvalidError) Unwrap() error { return e.Err }

// Expired reports whether the token was rejected only because it expired.
func (e *TokenInvalidError) Expired() bool { return errors.Is(e.Err, jwt.ErrTokenExpired) }

// SigningError reports a session token that could not be signed.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return "sign session token: " + e.Err.Error() }

func (e *SigningError) Unwrap() error { return e.Err }
