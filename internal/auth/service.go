// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/platform/config"
	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/platform/sec"
)

// maxUserinfoBytes bounds the identity provider's userinfo response.
const maxUserinfoBytes = 1 << 20

// # Service

// Service orchestrates the login flow and verifies session tokens.
//
// It implements [middleware.TokenVerifier], so the HTTP middleware can
// resolve the active user from either the Authorization header or the
// session cookie without knowing about OAuth2 at all.
type Service struct {
	oauth       *oauth2.Config
	userinfoURL string
	tokens      *sec.TokenService
	store       *SessionStore
	logger      *slog.Logger
}

// NewService wires the OAuth2 client from the environment configuration.
// When no client ID is configured the login flow is disabled: read
// endpoints stay public and every mutation is rejected as anonymous.
func NewService(cfg *config.Config, tokens *sec.TokenService, store *SessionStore, logger *slog.Logger) *Service {
	service := &Service{
		userinfoURL: cfg.OAuthUserinfoURL,
		tokens:      tokens,
		store:       store,
		logger:      logger.With(slog.String("component", "auth")),
	}

	if cfg.AuthEnabled() {
		service.oauth = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		}
	}

	return service
}

// Enabled reports whether the SSO integration is configured.
func (service *Service) Enabled() bool {
	return service.oauth != nil
}

// # Login Flow

// LoginURL starts a login flow: it mints a single-use state nonce, parks it
// in Redis, and returns the provider's authorization URL.
func (service *Service) LoginURL(ctx context.Context) (string, error) {
	if !service.Enabled() {
		return "", apperr.Unauthorized("Single sign-on is not configured on this deployment")
	}

	state := uuid.NewString()
	if err := service.store.SaveState(ctx, state); err != nil {
		return "", apperr.Internal(err)
	}

	return service.oauth.AuthCodeURL(state), nil
}

// Callback completes a login flow: validates the state nonce, exchanges the
// authorization code, resolves the identity, and issues the session token.
func (service *Service) Callback(ctx context.Context, state, code string) (string, *User, error) {
	if !service.Enabled() {
		return "", nil, apperr.Unauthorized("Single sign-on is not configured on this deployment")
	}
	if state == "" || code == "" {
		return "", nil, apperr.Unauthorized("Login callback is missing state or code")
	}

	valid, err := service.store.ConsumeState(ctx, state)
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	if !valid {
		return "", nil, apperr.Unauthorized("Login state is invalid or expired")
	}

	providerToken, err := service.oauth.Exchange(ctx, code)
	if err != nil {
		service.logger.Warn("oauth_code_exchange_failed", slog.String("error", err.Error()))
		return "", nil, apperr.Unauthorized("Authorization code exchange failed")
	}

	user, err := service.fetchUserinfo(ctx, providerToken)
	if err != nil {
		service.logger.Warn("oauth_userinfo_failed", slog.String("error", err.Error()))
		return "", nil, apperr.Unauthorized("Failed to resolve identity from the provider")
	}

	sessionToken, err := service.tokens.GenerateSessionToken(
		user.Username, user.FullName, user.Email, user.Roles, constants.SessionTokenTTL)
	if err != nil {
		return "", nil, apperr.Internal(err)
	}

	// Best effort: a cache miss just means the first request re-verifies
	// the JWT signature.
	claims, err := service.tokens.VerifyToken(sessionToken)
	if err == nil {
		if err := service.store.CacheSession(ctx, sessionToken, claims, constants.SessionTokenTTL); err != nil {
			service.logger.Warn("session_cache_write_failed", slog.String("error", err.Error()))
		}
	}

	service.logger.Info("user_logged_in",
		slog.String("username", user.Username),
		slog.Int("roles", len(user.Roles)),
	)

	return sessionToken, user, nil
}

// fetchUserinfo resolves the signed-in identity from the provider's
// userinfo endpoint using the freshly exchanged access token.
func (service *Service) fetchUserinfo(ctx context.Context, token *oauth2.Token) (*User, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, service.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to build userinfo request: %w", err)
	}

	response, err := service.oauth.Client(ctx, token).Do(request)
	if err != nil {
		return nil, fmt.Errorf("auth: userinfo request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo endpoint returned status %d", response.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxUserinfoBytes))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read userinfo response: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("auth: failed to decode userinfo response: %w", err)
	}

	user := &User{
		Username: stringClaim(raw, "preferred_username", "sub"),
		FullName: stringClaim(raw, "name"),
		Email:    stringClaim(raw, "email"),
		Roles:    rolesClaim(raw),
	}
	if user.Username == "" {
		return nil, fmt.Errorf("auth: userinfo response carries no username")
	}
	return user, nil
}

// stringClaim returns the first non-empty string among the named claims.
func stringClaim(claims map[string]any, names ...string) string {
	for _, name := range names {
		if value, ok := claims[name].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// rolesClaim extracts the granted role names. CERN's SSO publishes them as
// "cern_roles"; "roles" and "groups" cover other OIDC deployments.
func rolesClaim(claims map[string]any) []string {
	for _, name := range []string{"cern_roles", "roles", "groups"} {
		values, ok := claims[name].([]any)
		if !ok {
			continue
		}
		roles := make([]string, 0, len(values))
		for _, value := range values {
			if role, ok := value.(string); ok && role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) > 0 {
			return roles
		}
	}
	return nil
}

// # Token Verification

// VerifyToken resolves session claims for a presented token, preferring
// the Redis cache over signature verification. It satisfies
// [middleware.TokenVerifier].
func (service *Service) VerifyToken(tokenString string) (*sec.AuthClaims, error) {
	ctx := context.Background()

	claims, found, err := service.store.LookupSession(ctx, tokenString)
	if err != nil {
		// Redis being down degrades to local verification, not to a 401.
		service.logger.Warn("session_cache_lookup_failed", slog.String("error", err.Error()))
	}
	if found {
		return claims, nil
	}

	claims, err = service.tokens.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	// Re-populate the cache for the token's remaining lifetime.
	if claims.ExpiresAt != nil {
		remaining := time.Until(claims.ExpiresAt.Time)
		if err := service.store.CacheSession(ctx, tokenString, claims, remaining); err != nil {
			service.logger.Warn("session_cache_write_failed", slog.String("error", err.Error()))
		}
	}

	return claims, nil
}

// Logout evicts the token's cached session. The JWT itself stays valid
// until expiry; clearing the cookie is the client-side half of logout.
func (service *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return service.store.DeleteSession(ctx, token)
}
