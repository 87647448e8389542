package identity

import (
	"strings"
	"time"
)

// User is a person known to the bridge, keyed by email. Wallets carries the
// addresses stored for the user when it is loaded through FindByEmail.
type User struct {
	ID         string
	Email      string
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Wallets    []string
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
