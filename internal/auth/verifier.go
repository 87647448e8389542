package auth

import (
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig narrows what inbound tokens are accepted beyond the signature.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Verifier validates identity tokens signed by the issuer with RS256.
type Verifier struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
}

// NewVerifier builds a verifier around an already imported key.
func NewVerifier(key *rsa.PublicKey, cfg VerifierConfig) *Verifier {
	opts := []jwt.ParserOption{
		// RS256 only; rejects alg confusion with HS256 and "none".
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{key: key, parser: jwt.NewParser(opts...)}
}

// NewVerifierFromPEM imports the issuer key and builds a verifier. Malformed
// key material fails here, before any token is looked at.
func NewVerifierFromPEM(pemText string, cfg VerifierConfig) (*Verifier, error) {
	key, err := ParsePublicKey(pemText)
	if err != nil {
		return nil, err
	}
	return NewVerifier(key, cfg), nil
}

// Verify checks the token signature, expiry and not-before, and the required claims.
func (v *Verifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, &TokenInvalidError{Err: errors.New("empty token")}
	}

	var claims Claims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return Claims{}, &TokenInvalidError{Err: err}
	}
	if !parsed.Valid {
		return Claims{}, &TokenInvalidError{Err: jwt.ErrTokenSignatureInvalid}
	}
	if err := claims.check(); err != nil {
		return Claims{}, &TokenInvalidError{Err: err}
	}
	return claims, nil
}
