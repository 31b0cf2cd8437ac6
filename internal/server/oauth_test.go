package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Tomlord1122/family-todo/internal/config"
)

func TestNewGoogleProviderDisabled(t *testing.T) {
	assert.Nil(t, NewGoogleProvider(config.GoogleConfig{ClientID: "id"}))
}

func TestGoogleProviderExchange(t *testing.T) {
	var gotVerifier string
	verified := true
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotVerifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "1234", "email": "ann@example.com", "email_verified": verified, "name": "Ann",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	provider := NewGoogleProvider(config.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/google/callback",
	}).(*googleProvider)
	provider.conf.Endpoint = oauth2.Endpoint{AuthURL: ts.URL + "/auth", TokenURL: ts.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	provider.userInfoURL = ts.URL + "/userinfo"

	authURL, err := url.Parse(provider.AuthCodeURL("state-1", "verifier-1"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", authURL.Query().Get("state"))
	assert.Equal(t, "S256", authURL.Query().Get("code_challenge_method"))

	identity, err := provider.Exchange(context.Background(), "code", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "verifier-1", gotVerifier)
	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "1234", identity.Subject)
	assert.Equal(t, "ann@example.com", identity.Email)

	verified = false
	_, err = provider.Exchange(context.Background(), "code", "verifier-1")
	assert.Error(t, err)
}
