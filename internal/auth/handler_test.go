package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletbridge/authbridge/internal/identity"
)

func newExchangeApp(f *fixture) *fiber.App {
	app := fiber.New()
	app.Post("/auth/exchange", NewHandler(f.svc, nil).Exchange)
	return app
}

func doExchange(t *testing.T, app *fiber.App, authorization string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/exchange", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestExchangeHandlerSuccess(t *testing.T) {
	f := newFixture(t)
	app := newExchangeApp(f)

	resp, body := doExchange(t, app, "Bearer "+f.sign("a@x.com", "0x1", "0x2", "chain"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Len(t, payload, 1)

	claims, err := f.issuer.Parse(payload["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, []string{"0x1", "0x2"}, claims.Wallets)
}

func TestExchangeHandlerMissingHeader(t *testing.T) {
	f := newFixture(t)
	app := newExchangeApp(f)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz"} {
		resp, body := doExchange(t, app, header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		assert.Equal(t, ErrMissingCredential.Error(), body)
	}
	assert.Zero(t, f.repo.calls)
}

func TestExchangeHandlerInvalidToken(t *testing.T) {
	f := newFixture(t)
	app := newExchangeApp(f)

	resp, _ := doExchange(t, app, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	priv, _ := testKeys(t)
	expired := signIssuerToken(t, priv, tokenOpts{email: "a@x.com", expiresIn: -time.Hour})
	resp, body := doExchange(t, app, "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token is expired", body)
	assert.Zero(t, f.repo.calls)
}

func TestExchangeHandlerPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failInsert = &identity.PersistenceError{Op: "insert wallet", Err: errors.New("pq: relation \"wallets\" does not exist")}
	app := newExchangeApp(f)

	resp, body := doExchange(t, app, "Bearer "+f.sign("a@x.com", "0x1", "chain"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "failed to persist user", body)
	assert.NotContains(t, body, "relation")
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		err    bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "  BEARER   abc  ", want: "abc"},
		{header: "", err: true},
		{header: "Bearer ", err: true},
		{header: "Token abc", err: true},
		{header: "Bearerabc", err: true},
	}
	for _, tc := range cases {
		got, err := BearerToken(tc.header)
		if tc.err {
			assert.ErrorIs(t, err, ErrMissingCredential, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.want, got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrMissingCredential, http.StatusUnauthorized},
		{&TokenInvalidError{Err: errors.New("bad")}, http.StatusUnauthorized},
		{&KeyImportError{Err: errors.New("bad")}, http.StatusInternalServerError},
		{&SigningError{Err: errors.New("bad")}, http.StatusInternalServerError},
		{&identity.PersistenceError{Op: "x", Err: errors.New("bad")}, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, msg := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}
