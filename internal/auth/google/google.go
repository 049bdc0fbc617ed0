// Package google signs users in to Google with the OAuth2 authorization code
// flow (PKCE) and hands out refreshing access tokens for Drive calls.
package google

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
)

// Config configures an Authenticator.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// StateTTL bounds the time between Start and Callback.
	StateTTL time.Duration
	// Endpoint overrides Google's endpoint; the zero value selects Google.
	Endpoint oauth2.Endpoint
}

type pendingAuth struct {
	verifier string
	expires  time.Time
}

// Authenticator runs the sign-in flow and keeps signed-in tokens in memory,
// keyed by an opaque session id.
type Authenticator struct {
	oauth  *oauth2.Config
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	pending  map[string]pendingAuth
	sessions map[string]*oauth2.Token
}

// New creates an Authenticator.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns CONFIG_MISSING when no client id is configured.
func New(cfg Config, logger *zap.Logger) (*Authenticator, error) {
	if cfg.ClientID == "" {
		return nil, apperr.New(apperr.CodeConfigMissing, "google oauth client id is not configured")
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = oauthgoogle.Endpoint
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[string]pendingAuth),
		sessions: make(map[string]*oauth2.Token),
	}, nil
}

// Start begins a sign-in and returns the consent page URL and its state.
//
// Postcondition: The state is valid for Config.StateTTL.
func (a *Authenticator) Start() (authURL, state string) {
	verifier := oauth2.GenerateVerifier()
	state = uuid.NewString()

	a.mu.Lock()
	now := a.now()
	for s, p := range a.pending {
		if now.After(p.expires) {
			delete(a.pending, s)
		}
	}
	a.pending[state] = pendingAuth{verifier: verifier, expires: now.Add(a.ttl)}
	a.mu.Unlock()

	authURL = a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	return authURL, state
}

// Callback completes a sign-in by exchanging code for a token.
//
// Postcondition: Returns a new session id, or AUTH_FAILURE when state is
// unknown or expired or the exchange is refused. A state is usable once.
func (a *Authenticator) Callback(ctx context.Context, state, code string) (string, error) {
	a.mu.Lock()
	p, ok := a.pending[state]
	delete(a.pending, state)
	a.mu.Unlock()
	if !ok {
		return "", apperr.New(apperr.CodeAuthFailure, "unknown oauth state")
	}
	if a.now().After(p.expires) {
		return "", apperr.New(apperr.CodeAuthFailure, "oauth state expired")
	}
	if code == "" {
		return "", apperr.New(apperr.CodeAuthFailure, "missing authorization code")
	}

	tok, err := a.oauth.Exchange(ctx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		a.logger.Warn("oauth exchange failed", zap.Error(err))
		return "", apperr.Wrap(apperr.CodeAuthFailure, "exchanging authorization code", err)
	}

	id := uuid.NewString()
	a.mu.Lock()
	a.sessions[id] = tok
	a.mu.Unlock()
	a.logger.Info("google sign-in completed", zap.String("auth_session", id))
	return id, nil
}

// SignedIn reports whether sessionID holds a token.
func (a *Authenticator) SignedIn(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[sessionID]
	return ok
}

// SignOut forgets the token of sessionID.
func (a *Authenticator) SignOut(sessionID string) {
	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
}

// TokenSource returns a refreshing token provider for sessionID. Refreshed
// tokens are written back to the session.
//
// Postcondition: Returns AUTH_FAILURE when the session is unknown.
func (a *Authenticator) TokenSource(ctx context.Context, sessionID string) (oauth2.TokenSource, error) {
	a.mu.Lock()
	tok, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.CodeAuthFailure, "not signed in to google")
	}
	return &sessionTokenSource{
		auth:   a,
		id:     sessionID,
		last:   tok.AccessToken,
		source: oauth2.ReuseTokenSource(tok, a.oauth.TokenSource(ctx, tok)),
	}, nil
}

type sessionTokenSource struct {
	auth   *Authenticator
	id     string
	source oauth2.TokenSource

	mu   sync.Mutex
	last string
}

// Token implements oauth2.TokenSource.
func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.source.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			s.auth.SignOut(s.id)
		}
		s.auth.logger.Warn("oauth token refresh failed", zap.String("auth_session", s.id), zap.Error(err))
		return nil, apperr.Wrap(apperr.CodeAuthFailure, "refreshing google token", err)
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()
	if changed {
		s.auth.mu.Lock()
		if _, ok := s.auth.sessions[s.id]; ok {
			s.auth.sessions[s.id] = tok
		}
		s.auth.mu.Unlock()
		s.auth.logger.Debug("oauth token refreshed", zap.String("auth_session", s.id))
	}
	return tok, nil
}
