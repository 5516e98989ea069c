package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ssoforge/internal/accounts"
	"ssoforge/internal/idp"
	"ssoforge/internal/mailer"
	"ssoforge/pkg/config"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/security"
	"ssoforge/pkg/store"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := config.Config{Env: "test", BasePublicURL: "https://app.ssoforge.test", JWTSecret: "test-secret"}
	st := store.NewMemory()
	signer := security.NewSigner(cfg.JWTSecret)
	mail := mailer.New(cfg, log)
	acct := accounts.New(st, signer, mail, log, cfg.BasePublicURL)
	idps := idp.New(st, log)
	app := New(log, cfg, acct, idps, middleware.NewLimiter(nil, log))
	return app.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestAnonymousIdPLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t)

	code, created := doJSON(t, h, http.MethodPost, "/idps", "", map[string]any{"name": "Demo", "code": "demo"})
	require.Equal(t, http.StatusOK, code)
	idpID := created["id"].(string)
	saml := created["saml"].(map[string]any)
	require.Contains(t, saml["certificate"], "BEGIN CERTIFICATE")
	require.Contains(t, saml["privateKey"], "BEGIN RSA PRIVATE KEY")

	// GET returns the seeded users but never the private key again.
	code, got := doJSON(t, h, http.MethodGet, "/idps/"+idpID, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotContains(t, got["saml"], "privateKey")
	require.Len(t, got["users"], 2)

	// The anonymous list only sees explicitly included IdPs.
	code, list := doJSON(t, h, http.MethodGet, "/idps", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, list["idps"])
	code, list = doJSON(t, h, http.MethodGet, "/idps?include="+idpID, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list["idps"], 1)
}

func TestRegisterClaimAndLockoutOverHTTP(t *testing.T) {
	h := newTestServer(t)

	_, created := doJSON(t, h, http.MethodPost, "/idps", "", map[string]any{"name": "Demo", "code": "demo"})
	idpID := created["id"].(string)

	code, reg := doJSON(t, h, http.MethodPost, "/accounts", "", map[string]any{
		"email": "ada@example.com", "password": "password1", "idpsToClaim": []string{idpID},
	})
	require.Equal(t, http.StatusOK, code)
	token := reg["token"].(string)
	require.NotEmpty(t, token)

	// Claimed: anonymous access now 403s, the owner still sees it.
	code, body := doJSON(t, h, http.MethodGet, "/idps/"+idpID, "", nil)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "You can't view this IdP", body["message"])

	code, _ = doJSON(t, h, http.MethodGet, "/idps/"+idpID, token, nil)
	require.Equal(t, http.StatusOK, code)

	code, me := doJSON(t, h, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ada@example.com", me["email"])

	code, out := doJSON(t, h, http.MethodDelete, "/accounts/sessions", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, out["loggedOut"])

	code, _ = doJSON(t, h, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestSPEndpointsOverHTTP(t *testing.T) {
	h := newTestServer(t)

	_, created := doJSON(t, h, http.MethodPost, "/idps", "", map[string]any{"name": "Demo", "code": "demo"})
	idpID := created["id"].(string)

	code, sp := doJSON(t, h, http.MethodPost, "/idps/"+idpID+"/sps", "", map[string]any{
		"name": "RP", "entityId": "https://rp.example.com",
	})
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, sp["oauth2ClientId"])
	require.Len(t, sp["oauth2ClientSecret"], 32)
	spID := sp["id"].(string)

	code, list := doJSON(t, h, http.MethodGet, "/idps/"+idpID+"/sps", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list["sps"], 1)

	code, del := doJSON(t, h, http.MethodDelete, "/idps/"+idpID+"/sps/"+spID, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, spID, del["deletedIDPSP"])
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	h := newTestServer(t)

	code, body := doJSON(t, h, http.MethodPost, "/idps", "", map[string]any{"name": "Demo", "code": "bad code!"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "The IdP issuer is invalid. Please just use letters, numbers, hyphens, and underscores.", body["message"])

	code, body = doJSON(t, h, http.MethodGet, "/idps/not-a-real-id", "", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "The IdP could not be found", body["message"])
}
