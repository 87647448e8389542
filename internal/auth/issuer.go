package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/walletbridge/authbridge/internal/identity"
)

const (
	// DefaultSessionAudience is the audience downstream consumers expect on session tokens.
	DefaultSessionAudience = "authenticated"
	// DefaultSessionTTL is how long an issued session token stays valid.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// SessionClaims is the payload of a first-party session token: the resolved
// user record plus registered claims.
type SessionClaims struct {
	UserID     string    `json:"id"`
	Email      string    `json:"email"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Wallets    []string  `json:"wallets"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 session tokens with a shared secret.
type Issuer struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewIssuer builds a session issuer. Zero audience or ttl fall back to the defaults.
func NewIssuer(secret, audience string, ttl time.Duration) *Issuer {
	if audience == "" {
		audience = DefaultSessionAudience
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Issuer{secret: []byte(secret), audience: audience, ttl: ttl, now: time.Now}
}

// Issue signs a session token for user.
func (i *Issuer) Issue(user identity.User) (string, error) {
	if len(strings.TrimSpace(string(i.secret))) == 0 {
		return "", &SigningError{Err: errors.New("signing secret is not configured")}
	}

	now := i.now()
	wallets := user.Wallets
	if wallets == nil {
		wallets = []string{}
	}
	claims := SessionClaims{
		UserID:     user.ID,
		Email:      user.Email,
		ExternalID: user.ExternalID,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
		Wallets:    wallets,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", &SigningError{Err: err}
	}
	return signed, nil
}

// Parse verifies a session token previously produced by Issue.
func (i *Issuer) Parse(token string) (SessionClaims, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return SessionClaims{}, &TokenInvalidError{Err: err}
	}
	if !parsed.Valid || claims.UserID == "" {
		return SessionClaims{}, &TokenInvalidError{Err: errors.New("session token has no user")}
	}
	return claims, nil
}
