// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/platform/middleware"
	"github.com/hep-fcc/datacat/internal/platform/respond"
)

// # HTTP Handler

// Handler exposes the login lifecycle over HTTP.
//
// Two cookies are maintained per session, both namespaced by the
// deployment's cookie prefix: the HttpOnly session token cookie used for
// authentication, and a JavaScript-readable username mirror the frontend
// renders the signed-in state from.
type Handler struct {
	service      *Service
	cookiePrefix string
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, cookiePrefix string) *Handler {
	return &Handler{service: service, cookiePrefix: cookiePrefix}
}

// RegisterRoutes mounts the login flow endpoints.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/login", handler.login)
	router.Get("/callback", handler.callback)
	router.Post("/logout", handler.logout)
}

// TokenCookieName is the full name of the HttpOnly session token cookie.
func (handler *Handler) TokenCookieName() string {
	return handler.cookiePrefix + constants.SessionTokenCookieSuffix
}

// userCookieName is the full name of the readable username mirror cookie.
func (handler *Handler) userCookieName() string {
	return handler.cookiePrefix + constants.SessionUserCookieSuffix
}

/*
login starts the SSO flow.

GET /auth/login

Response:
  - 302: Redirect to the identity provider's authorization page
  - 401: SSO is not configured on this deployment
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	url, err := handler.service.LoginURL(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	http.Redirect(writer, request, url, http.StatusFound)
}

/*
callback completes the SSO flow after the provider redirects back.

GET /auth/callback?state=...&code=...

Response:
  - 302: Session cookies set, redirect to the application root
  - 401: Invalid state, failed code exchange, or unresolvable identity
*/
func (handler *Handler) callback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	token, user, err := handler.service.Callback(request.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	expires := time.Now().Add(constants.SessionTokenTTL)

	http.SetCookie(writer, &http.Cookie{
		Name:     handler.TokenCookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		Secure:   request.TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.userCookieName(),
		Value:    user.Username,
		Path:     "/",
		Expires:  expires,
		Secure:   request.TLS != nil,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(writer, request, "/", http.StatusFound)
}

/*
logout terminates the session.

POST /auth/logout

Response:
  - 200: Session evicted and cookies cleared
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(handler.TokenCookieName()); err == nil && cookie.Value != "" {
		// Idempotent: an already-evicted session is still a logout.
		_ = handler.service.Logout(request.Context(), cookie.Value)
	}

	handler.clearCookie(writer, request, handler.TokenCookieName(), true)
	handler.clearCookie(writer, request, handler.userCookieName(), false)

	respond.Message(writer, http.StatusOK, "Logged out")
}

func (handler *Handler) clearCookie(writer http.ResponseWriter, request *http.Request, name string, httpOnly bool) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   request.TLS != nil,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	})
}

/*
SessionStatus reports whether the current request is authenticated.

GET /api/v1/session-status

It is mounted inside the API group (after the authentication middleware)
so the frontend can poll it to render the login state.

Response:
  - 200: {"authenticated": bool, "user": {...} | null}
*/
func (handler *Handler) SessionStatus(writer http.ResponseWriter, request *http.Request) {
	claims := middleware.GetUser(request.Context())

	respond.JSON(writer, http.StatusOK, map[string]any{
		"authenticated": claims != nil,
		"user":          FromClaims(claims),
	})
}
