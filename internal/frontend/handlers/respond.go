package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError renders err as a localized error body with the status of its
// kind. Unclassified errors are logged; their text never reaches the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	} else {
		a.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: apperr.UserMessage(err, r.Header.Get("Accept-Language")),
	}})
}

// decodeBody reads a JSON request body into v.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxUpload))
	if err := dec.Decode(v); err != nil {
		return uploadError(err)
	}
	return nil
}

// readUpload returns the uploaded file: the "file" part of a multipart form
// or the raw request body.
func (a *API) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(a.maxUpload); err != nil {
			return nil, uploadError(err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeParseFailure, "reading file field", err)
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, uploadError(err)
	}
	return data, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.WithMetadata(apperr.CodeValidationFailure, "upload too large",
			map[string]string{"detail": "file too large"})
	}
	return apperr.Wrap(apperr.CodeParseFailure, "reading request body", err)
}
