package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/export"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/session"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
)

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Open(character.New(a.Tables), session.Options{})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := a.readUpload(w, r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rec, err := a.Codec.Decode(data)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.Open(rec, session.Options{})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.logger.Info("sheet imported", zap.String("sheet_id", snap.ID), zap.Int("bytes", len(data)))
	writeJSON(w, http.StatusCreated, snap)
}

func (a *API) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Sessions.List())
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleReplace loads a save file (JSON or zip) into an open sheet. The
// sheet is unchanged unless the whole file decodes and validates.
func (a *API) handleReplace(w http.ResponseWriter, r *http.Request) {
	data, err := a.readUpload(w, r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rec, err := a.Codec.Decode(data)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.Replace(r.PathValue("id"), rec)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Close(r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func attachment(w http.ResponseWriter, name, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.Codec.Encode(snap.Record)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	attachment(w, sheetfile.FileName(snap.Record, p.Kind), p.MimeType, p.Data)
}

func (a *API) handleImage(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	img, ok := snap.Record.Image(r.PathValue("key"))
	if !ok || len(img.Data) == 0 {
		a.writeError(w, r, apperr.New(apperr.CodeNotFound, fmt.Sprintf("image %q", r.PathValue("key"))))
		return
	}
	mimeType := img.MimeType
	if !character.IsImageType(mimeType) {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(img.Data)
}

// shareURL is the link that opens a shared file read-only.
func (a *API) shareURL(fileID string) string {
	return a.PublicURL + "/?" + url.Values{"sharedId": {fileID}}.Encode()
}

func (a *API) handleCocofolia(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	e := export.Cocofolia(snap.Record, a.Tables)
	if r.URL.Query().Get("format") != "json" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(e.Text()))
		return
	}

	externalURL := ""
	if snap.DriveFileID != "" && a.PublicURL != "" {
		externalURL = a.shareURL(snap.DriveFileID)
	}
	body, err := e.ClipboardJSON(snap.Record, snap.Derived, externalURL)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(body)
}

func (a *API) handlePrint(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(a.Printer.Render(snap.Record, a.Tables)))
}

type rollRequest struct {
	Skill  string `json:"skill"`
	Expert string `json:"expert"`
}

type rollResponse struct {
	Label      string `json:"label"`
	Expression string `json:"expression"`
	Dice       []int  `json:"dice"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
	Text       string `json:"text"`
}

// handleRoll rolls a skill check of the sheet.
func (a *API) handleRoll(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := a.decodeBody(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	snap, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	label, expr, err := export.SkillCheck(snap.Record, a.Tables, req.Skill, req.Expert)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res := a.Roller.Roll(expr, label)
	writeJSON(w, http.StatusOK, rollResponse{
		Label:      label,
		Expression: res.Expression,
		Dice:       res.Dice,
		Modifier:   res.Modifier,
		Total:      res.Total(),
		Text:       res.Expression + " " + label + " → " + strconv.Itoa(res.Total()),
	})
}
