package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletbridge/authbridge/internal/config"
	"github.com/walletbridge/authbridge/internal/logging"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return config.Config{
		AppName:         "bridge-test",
		AppEnv:          "development",
		Port:            "0",
		IssuerPublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		SessionSecret:   "secret",
		SessionTTL:      time.Hour,
		InflightTTL:     time.Second,
		ShutdownPeriod:  time.Second,
	}
}

func TestNewInDevelopmentWithoutBackends(t *testing.T) {
	srv, err := New(devConfig(t), nil, nil, nil, logging.Discard())
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodPost, "/api/v1/auth/exchange", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewRejectsMissingDatabaseInProduction(t *testing.T) {
	cfg := devConfig(t)
	cfg.AppEnv = "production"

	_, err := New(cfg, nil, nil, nil, logging.Discard())
	require.Error(t, err)
}
