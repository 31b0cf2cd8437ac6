package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/Tomlord1122/family-todo/internal/config"
	"github.com/Tomlord1122/family-todo/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// OAuthProvider runs the authorization-code flow against one identity provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (service.OAuthIdentity, error)
}

type googleProvider struct {
	conf        *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider returns nil when Google sign-in is not configured.
func NewGoogleProvider(cfg config.GoogleConfig) OAuthProvider {
	if !cfg.Enabled() {
		return nil
	}
	return &googleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *googleProvider) Name() string { return "google" }

func (g *googleProvider) AuthCodeURL(state, verifier string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

type googleUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (g *googleProvider) Exchange(ctx context.Context, code, verifier string) (service.OAuthIdentity, error) {
	token, err := g.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return service.OAuthIdentity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return service.OAuthIdentity{}, err
	}
	resp, err := g.conf.Client(ctx, token).Do(req)
	if err != nil {
		return service.OAuthIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return service.OAuthIdentity{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return service.OAuthIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if !info.EmailVerified {
		return service.OAuthIdentity{}, errors.New("google account email is not verified")
	}
	return service.OAuthIdentity{
		Provider: g.Name(),
		Subject:  info.Subject,
		Email:    info.Email,
		Name:     info.Name,
	}, nil
}

func (s *Server) oauthStartHandler(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		respondWithError(w, http.StatusNotFound, "OAuth sign-in is not configured")
		return
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state + "." + verifier,
		Path:     "/auth/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state, verifier), http.StatusFound)
}

func (s *Server) oauthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		respondWithError(w, http.StatusNotFound, "OAuth sign-in is not configured")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing OAuth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/", MaxAge: -1})

	state, verifier, ok := strings.Cut(cookie.Value, ".")
	if !ok || state == "" || state != r.URL.Query().Get("state") {
		respondWithError(w, http.StatusBadRequest, "OAuth state mismatch")
		return
	}
	if e := r.URL.Query().Get("error"); e != "" {
		respondWithError(w, http.StatusUnauthorized, "Sign-in was cancelled: "+e)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	identity, err := s.oauth.Exchange(r.Context(), code, verifier)
	if err != nil {
		log.Warn("oauth exchange failed", "provider", s.oauth.Name(), "err", err)
		respondWithError(w, http.StatusUnauthorized, "Sign-in with "+s.oauth.Name()+" failed")
		return
	}

	account, err := s.accounts.SignInOAuth(r.Context(), identity)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	s.startSession(w, r, account.Email, account.ID)
}
