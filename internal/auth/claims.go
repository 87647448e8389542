package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/walletbridge/authbridge/internal/wallet"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// VerifiedCredential is an address attested by the token issuer.
type VerifiedCredential struct {
	Address string `json:"address"`
}

// Claims is the payload of an inbound identity token.
type Claims struct {
	Email               string               `json:"email" validate:"required"`
	VerifiedCredentials []VerifiedCredential `json:"verified_credentials"`
	jwt.RegisteredClaims
}

// check only requires the email to be present. Its format is the issuer's
// business; identity.NormalizeEmail canonicalises it for lookups.
func (c *Claims) check() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("claims: %w", err)
	}
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("claims: email is blank")
	}
	return nil
}

// WalletAddresses returns the addresses to reconcile: the verified
// credentials without the trailing chain credential, blank and duplicate
// entries removed.
func (c Claims) WalletAddresses() []string {
	creds := ExcludeTrailingNonWalletCredential(c.VerifiedCredentials)
	addresses := make([]string, 0, len(creds))
	for _, cred := range creds {
		addresses = append(addresses, cred.Address)
	}
	return wallet.Normalize(addresses)
}

// ExcludeTrailingNonWalletCredential drops the last verified credential. The
// issuer appends a network credential after the wallet entries, so it never
// names a wallet of the user.
func ExcludeTrailingNonWalletCredential(creds []VerifiedCredential) []VerifiedCredential {
	if len(creds) == 0 {
		return nil
	}
	return creds[:len(creds)-1]
}
