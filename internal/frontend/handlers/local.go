package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/session"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/postgres"
)

func (a *API) local() (LocalStore, error) {
	if a.Local == nil {
		return nil, apperr.New(apperr.CodeConfigMissing, "local storage is not configured")
	}
	return a.Local, nil
}

func localError(id string, err error) error {
	if errors.Is(err, postgres.ErrSheetNotFound) {
		return apperr.Wrap(apperr.CodeNotFound, fmt.Sprintf("stored sheet %q", id), err)
	}
	return err
}

func (a *API) handleLocalList(w http.ResponseWriter, r *http.Request) {
	store, err := a.local()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sheets, err := store.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheets)
}

// handleLocalOpen reopens a locally stored sheet under its stored id, so
// further edits autosave over the same row.
func (a *API) handleLocalOpen(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store, err := a.local()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	stored, err := store.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, localError(id, err))
		return
	}
	rec, err := a.Codec.Decode(stored.Payload)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.Open(rec, session.Options{ID: stored.ID, DriveFileID: stored.DriveFileID})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (a *API) handleLocalDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store, err := a.local()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := store.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, localError(id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
