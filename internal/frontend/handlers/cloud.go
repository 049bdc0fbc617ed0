package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/export"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/session"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/drive"
)

const (
	// authCookie carries the sign-in session id.
	authCookie = "sheet_auth"
	// maxTableSheets bounds the sheets of one GM table request.
	maxTableSheets = 32
	// tableFetchLimit bounds concurrent downloads of one GM table request.
	tableFetchLimit = 4
)

// userDrive opens the Drive of the signed-in user.
func (a *API) userDrive(r *http.Request) (drive.Store, error) {
	if a.Auth == nil || a.Drive == nil {
		return nil, apperr.New(apperr.CodeConfigMissing, "google sign-in is not configured")
	}
	c, err := r.Cookie(authCookie)
	if err != nil || c.Value == "" {
		return nil, apperr.New(apperr.CodeAuthFailure, "not signed in to google")
	}
	ts, err := a.Auth.TokenSource(r.Context(), c.Value)
	if err != nil {
		return nil, err
	}
	return a.Drive(r.Context(), ts)
}

func (a *API) publicDrive(ctx context.Context) (drive.Store, error) {
	if a.PublicDrive == nil {
		return nil, apperr.New(apperr.CodeConfigMissing, "google api key is not configured")
	}
	return a.PublicDrive(ctx)
}

func (a *API) handleDriveList(w http.ResponseWriter, r *http.Request) {
	store, err := a.userDrive(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	folderID, err := store.FindOrCreateConfiguredFolder(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	files, err := store.ListFiles(r.Context(), folderID, drive.SheetMimeTypes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folderId": folderID, "files": files})
}

// handleDriveSave uploads an open sheet. The sheet's linked file is
// overwritten unless ?new=true is given. Overlapping saves of one sheet fail
// with CONFLICT.
func (a *API) handleDriveSave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store, err := a.userDrive(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.BeginSave(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	savedID := ""
	defer func() { a.Sessions.EndSave(id, savedID) }()

	p, err := a.Codec.Encode(snap.Record)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	target := snap.DriveFileID
	if r.URL.Query().Get("new") == "true" {
		target = ""
	}
	file, err := store.SaveFile(r.Context(), p, sheetfile.FileName(snap.Record, p.Kind), target)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	savedID = file.ID
	a.logger.Info("sheet saved to drive", zap.String("sheet_id", id), zap.String("file_id", file.ID))
	writeJSON(w, http.StatusOK, file)
}

// loadRecord downloads and decodes a save file.
func (a *API) loadRecord(ctx context.Context, store drive.Store, fileID string) (*character.Record, error) {
	data, err := store.LoadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return a.Codec.Decode(data)
}

func (a *API) handleDriveOpen(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	store, err := a.userDrive(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rec, err := a.loadRecord(r.Context(), store, fileID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.Open(rec, session.Options{DriveFileID: fileID})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

type shareResponse struct {
	FileID string `json:"fileId"`
	URL    string `json:"url"`
}

func (a *API) handleShare(w http.ResponseWriter, r *http.Request) {
	store, err := a.userDrive(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if snap.DriveFileID == "" {
		a.writeError(w, r, apperr.WithMetadata(apperr.CodeValidationFailure, "sheet is not saved to drive",
			map[string]string{"detail": "save to Google Drive first"}))
		return
	}
	if err := store.EnsureFilePublic(r.Context(), snap.DriveFileID); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{FileID: snap.DriveFileID, URL: a.shareURL(snap.DriveFileID)})
}

// handleShared opens a publicly shared file as a read-only sheet.
func (a *API) handleShared(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	store, err := a.publicDrive(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rec, err := a.loadRecord(r.Context(), store, fileID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.OpenShared(rec, fileID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// tableRow summarizes one shared sheet on the GM table.
type tableRow struct {
	FileID              string       `json:"fileId"`
	Name                string       `json:"name,omitempty"`
	PlayerName          string       `json:"playerName,omitempty"`
	Species             string       `json:"species,omitempty"`
	Scar                float64      `json:"scar"`
	Weight              float64      `json:"weight"`
	MaxExperience       int          `json:"maxExperience"`
	CurrentExperience   int          `json:"currentExperience"`
	RemainingExperience int          `json:"remainingExperience"`
	Commands            string       `json:"commands,omitempty"`
	Error               *errorDetail `json:"error,omitempty"`
}

// tableIDs collects sharedId values, accepting repeated and comma-separated
// forms.
func tableIDs(r *http.Request) []string {
	var ids []string
	seen := map[string]bool{}
	for _, v := range r.URL.Query()["sharedId"] {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// handleTable builds the GM overview of several shared sheets. A sheet that
// fails to load yields a row carrying its error; the others are unaffected.
func (a *API) handleTable(w http.ResponseWriter, r *http.Request) {
	ids := tableIDs(r)
	if len(ids) == 0 || len(ids) > maxTableSheets {
		a.writeError(w, r, apperr.WithMetadata(apperr.CodeValidationFailure, "bad sharedId list",
			map[string]string{"detail": "sharedId: 1-32 ids"}))
		return
	}
	store, err := a.publicDrive(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rows := make([]tableRow, len(ids))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(tableFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			rows[i] = a.tableRow(ctx, store, id, r.Header.Get("Accept-Language"))
			return nil
		})
	}
	_ = g.Wait()
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (a *API) tableRow(ctx context.Context, store drive.Store, fileID, lang string) tableRow {
	row := tableRow{FileID: fileID}
	rec, err := a.loadRecord(ctx, store, fileID)
	if err != nil {
		a.logger.Debug("table sheet failed", zap.String("file_id", fileID), zap.Error(err))
		row.Error = &errorDetail{Code: apperr.CodeOf(err), Message: apperr.UserMessage(err, lang)}
		return row
	}
	d := character.Derive(rec, a.Tables)
	row.Name = rec.Character.Name
	row.PlayerName = rec.Character.PlayerName
	row.Species = export.SpeciesName(rec.Character, a.Tables)
	row.Scar = d.Scar
	row.Weight = d.Weight
	row.MaxExperience = d.MaxExperience
	row.CurrentExperience = d.CurrentExperience
	row.RemainingExperience = d.RemainingExperience
	row.Commands = export.Cocofolia(rec, a.Tables).Commands
	return row
}
