package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var pemBoundary = regexp.MustCompile(`-----(BEGIN|END)[^-]*-----`)

// ParsePublicKey converts PEM encoded issuer key material into an RSA public
// key. It is lenient about layout: armour lines are stripped, the
// remaining body is joined, and literal "\n" escapes left by env files are
// treated as line breaks. SPKI is expected; PKCS#1 is accepted as a fallback.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	body := pemBody(pemText)
	if body == "" {
		return nil, &KeyImportError{Err: errors.New("empty key material")}
	}

	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, &KeyImportError{Err: fmt.Errorf("decode base64 body: %w", err)}
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		if key, pkcs1Err := x509.ParsePKCS1PublicKey(der); pkcs1Err == nil {
			return key, nil
		}
		return nil, &KeyImportError{Err: fmt.Errorf("parse public key: %w", err)}
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &KeyImportError{Err: fmt.Errorf("unsupported key type %T, want RSA", parsed)}
	}
	return key, nil
}

func pemBody(pemText string) string {
	text := strings.ReplaceAll(pemText, `\n`, "\n")
	text = pemBoundary.ReplaceAllString(text, "\n")

	return strings.Join(strings.Fields(text), "")
}
