package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
)

const (
	// stateCookie binds an OAuth state to the browser that started the flow.
	stateCookie = "sheet_oauth_state"
	stateMaxAge = 10 * time.Minute
	authMaxAge  = 30 * 24 * time.Hour
)

func (a *API) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   strings.HasPrefix(a.PublicURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *API) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if a.Auth == nil {
		a.writeError(w, r, apperr.New(apperr.CodeConfigMissing, "google sign-in is not configured"))
		return
	}
	authURL, state := a.Auth.Start()
	http.SetCookie(w, a.cookie(stateCookie, state, stateMaxAge))
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (a *API) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if a.Auth == nil {
		a.writeError(w, r, apperr.New(apperr.CodeConfigMissing, "google sign-in is not configured"))
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		a.writeError(w, r, apperr.WithMetadata(apperr.CodeAuthFailure, "consent denied: "+e, map[string]string{"detail": e}))
		return
	}
	state := q.Get("state")
	c, err := r.Cookie(stateCookie)
	if err != nil || state == "" || c.Value != state {
		a.writeError(w, r, apperr.New(apperr.CodeAuthFailure, "oauth state mismatch"))
		return
	}
	http.SetCookie(w, a.cookie(stateCookie, "", -time.Second))

	sessionID, err := a.Auth.Callback(r.Context(), state, q.Get("code"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	http.SetCookie(w, a.cookie(authCookie, sessionID, authMaxAge))
	a.logger.Info("google sign-in", zap.String("auth_session", sessionID))

	target := a.PublicURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleAuthStatus tells the page whether the Drive actions are available.
func (a *API) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	signedIn := false
	if c, err := r.Cookie(authCookie); err == nil && a.Auth != nil {
		signedIn = a.Auth.SignedIn(c.Value)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"configured": a.Auth != nil, "signedIn": signedIn})
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(authCookie); err == nil && a.Auth != nil {
		a.Auth.SignOut(c.Value)
	}
	http.SetCookie(w, a.cookie(authCookie, "", -time.Second))
	w.WriteHeader(http.StatusNoContent)
}
