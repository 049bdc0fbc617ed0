package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
)

func TestCodeOf_WalksWrappedChain(t *testing.T) {
	base := apperr.Wrap(apperr.CodeParseFailure, "decoding sheet", errors.New("unexpected EOF"))
	wrapped := fmt.Errorf("loading file: %w", base)

	assert.Equal(t, apperr.CodeParseFailure, apperr.CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, apperr.ErrParseFailure)
	assert.NotErrorIs(t, wrapped, apperr.ErrFetchFailure)
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, apperr.CodeUnknown, apperr.CodeOf(errors.New("boom")))
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := apperr.Wrap(apperr.CodeFetchFailure, "listing files", errors.New("dial tcp: refused"))
	assert.Equal(t, "listing files: dial tcp: refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(apperr.CodeParseFailure))
	assert.Equal(t, http.StatusUnauthorized, apperr.HTTPStatus(apperr.CodeAuthFailure))
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(apperr.CodeConflict))
	assert.Equal(t, http.StatusForbidden, apperr.HTTPStatus(apperr.CodeReadOnly))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(apperr.CodeUnknown))
}

func TestResolveLocale(t *testing.T) {
	assert.Equal(t, language.English, apperr.ResolveLocale("en-US,en;q=0.9"))
	assert.Equal(t, language.Japanese, apperr.ResolveLocale("ja,en;q=0.5"))
	assert.Equal(t, language.Japanese, apperr.ResolveLocale(""))
}

func TestUserMessage_TemplatesMetadata(t *testing.T) {
	err := apperr.WithMetadata(apperr.CodeValidationFailure, "bad version", map[string]string{"detail": "version 9"})
	assert.Equal(t, "The sheet contains invalid data. (version 9)", apperr.UserMessage(err, "en"))
	assert.Contains(t, apperr.UserMessage(err, "ja"), "version 9")
}

func TestUserMessage_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred.", apperr.UserMessage(errors.New("x"), "en"))
}

func TestUserMessage_ConflictReasons(t *testing.T) {
	saving := apperr.New(apperr.CodeConflict, "sheet is already being saved")
	limit := apperr.WithMetadata(apperr.CodeConflict, "too many open sheets",
		map[string]string{"reason": apperr.ReasonSessionLimit})

	assert.Equal(t, "A save is already in progress. Try again when it finishes.", apperr.UserMessage(saving, "en"))
	assert.Equal(t, "Too many sheets are open. Close one and try again.", apperr.UserMessage(limit, "en"))
	assert.Contains(t, apperr.UserMessage(saving, "ja"), "保存処理が進行中です")
	assert.Contains(t, apperr.UserMessage(limit, "ja"), "開いているシートが多すぎます")
}
