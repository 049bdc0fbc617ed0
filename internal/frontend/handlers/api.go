// Package handlers implements the JSON HTTP API of the sheet service.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/cory-johannsen/aionia-sheet/internal/export"
	"github.com/cory-johannsen/aionia-sheet/internal/game/dice"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
	"github.com/cory-johannsen/aionia-sheet/internal/game/session"
	"github.com/cory-johannsen/aionia-sheet/internal/observability"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/drive"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/postgres"
)

// Authenticator is the Google sign-in flow used by the OAuth routes.
type Authenticator interface {
	Start() (authURL, state string)
	Callback(ctx context.Context, state, code string) (string, error)
	TokenSource(ctx context.Context, sessionID string) (oauth2.TokenSource, error)
	SignedIn(sessionID string) bool
	SignOut(sessionID string)
}

// LocalStore is the locally persisted sheet storage.
type LocalStore interface {
	List(ctx context.Context) ([]postgres.SheetSummary, error)
	Get(ctx context.Context, id string) (postgres.StoredSheet, error)
	Delete(ctx context.Context, id string) error
}

// DriveFactory opens the Drive of the user owning ts.
type DriveFactory func(ctx context.Context, ts oauth2.TokenSource) (drive.Store, error)

// PublicDriveFactory opens an anonymous Drive reader.
type PublicDriveFactory func(ctx context.Context) (drive.Store, error)

// Deps are the collaborators of the API. Auth, Drive, PublicDrive, Local,
// and Health may be nil; the routes that need them then fail with
// CONFIG_MISSING.
type Deps struct {
	Tables   *ruleset.Tables
	Sessions *session.Manager
	Codec    *sheetfile.Codec
	Printer  *export.Printer
	Roller   *dice.Roller

	Auth        Authenticator
	Drive       DriveFactory
	PublicDrive PublicDriveFactory
	Local       LocalStore
	Health      func(ctx context.Context) error

	// PublicURL is the externally visible base URL used in share links and
	// OAuth redirects.
	PublicURL      string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// API serves the sheet HTTP routes.
type API struct {
	Deps
	logger    *zap.Logger
	maxUpload int64
}

// New creates an API.
//
// Precondition: Tables, Sessions, Codec, Printer, Roller, and Logger must be
// non-nil.
func New(deps Deps) *API {
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	deps.PublicURL = strings.TrimRight(deps.PublicURL, "/")
	return &API{Deps: deps, logger: deps.Logger, maxUpload: maxUpload}
}

// Handler returns the routed handler wrapped in access logging.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /api/rules", a.handleRules)

	mux.HandleFunc("POST /api/sheets", a.handleCreate)
	mux.HandleFunc("POST /api/sheets/import", a.handleImport)
	mux.HandleFunc("GET /api/sheets", a.handleList)
	mux.HandleFunc("GET /api/sheets/{id}", a.handleGet)
	mux.HandleFunc("PUT /api/sheets/{id}", a.handleReplace)
	mux.HandleFunc("DELETE /api/sheets/{id}", a.handleClose)
	mux.HandleFunc("POST /api/sheets/{id}/ops", a.handleOp)
	mux.HandleFunc("GET /api/sheets/{id}/file", a.handleDownload)
	mux.HandleFunc("GET /api/sheets/{id}/images/{key}", a.handleImage)
	mux.HandleFunc("GET /api/sheets/{id}/export/cocofolia", a.handleCocofolia)
	mux.HandleFunc("GET /api/sheets/{id}/print", a.handlePrint)
	mux.HandleFunc("POST /api/sheets/{id}/roll", a.handleRoll)

	mux.HandleFunc("GET /api/local", a.handleLocalList)
	mux.HandleFunc("POST /api/local/{id}/open", a.handleLocalOpen)
	mux.HandleFunc("DELETE /api/local/{id}", a.handleLocalDelete)

	mux.HandleFunc("GET /api/drive/files", a.handleDriveList)
	mux.HandleFunc("POST /api/sheets/{id}/drive", a.handleDriveSave)
	mux.HandleFunc("POST /api/drive/files/{fileId}/open", a.handleDriveOpen)
	mux.HandleFunc("POST /api/sheets/{id}/share", a.handleShare)
	mux.HandleFunc("GET /api/shared/{fileId}", a.handleShared)
	mux.HandleFunc("GET /api/table", a.handleTable)

	mux.HandleFunc("GET /oauth/google/start", a.handleOAuthStart)
	mux.HandleFunc("GET /oauth/google/callback", a.handleOAuthCallback)
	mux.HandleFunc("GET /oauth/google/status", a.handleAuthStatus)
	mux.HandleFunc("POST /oauth/google/signout", a.handleSignOut)

	return observability.AccessLog(a.logger, mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "sessions": a.Sessions.Count()}
	if a.Health != nil {
		if err := a.Health(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			status["status"] = "degraded"
			status["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Tables)
}

// healthTimeout bounds the database ping of /healthz.
const healthTimeout = 2 * time.Second

// PoolHealth adapts a pool health check to Deps.Health.
func PoolHealth(p *postgres.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return p.Health(ctx, healthTimeout)
	}
}
