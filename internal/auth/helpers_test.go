package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce  sync.Once
	keyA     *rsa.PrivateKey
	keyB     *rsa.PrivateKey
	keyGenEr error
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		keyA, keyGenEr = rsa.GenerateKey(rand.Reader, 2048)
		if keyGenEr != nil {
			return
		}
		keyB, keyGenEr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keyGenEr)
	return keyA, keyB
}

func publicPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

type tokenOpts struct {
	email     string
	subject   string
	addresses []string
	expiresIn time.Duration
	notBefore time.Time
	method    jwt.SigningMethod
	key       any
}

func signIssuerToken(t *testing.T, key *rsa.PrivateKey, o tokenOpts) string {
	t.Helper()
	if o.expiresIn == 0 {
		o.expiresIn = time.Hour
	}
	creds := make([]map[string]string, 0, len(o.addresses))
	for _, a := range o.addresses {
		creds = append(creds, map[string]string{"address": a})
	}
	claims := jwt.MapClaims{
		"sub":                  o.subject,
		"iat":                  time.Now().Unix(),
		"exp":                  time.Now().Add(o.expiresIn).Unix(),
		"verified_credentials": creds,
	}
	if o.email != "" {
		claims["email"] = o.email
	}
	if !o.notBefore.IsZero() {
		claims["nbf"] = o.notBefore.Unix()
	}
	method := o.method
	if method == nil {
		method = jwt.SigningMethodRS256
	}
	var signKey any = key
	if o.key != nil {
		signKey = o.key
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(signKey)
	require.NoError(t, err)
	return signed
}
