// Package drive stores character sheet save files in Google Drive.
//
// Sheets live in one folder of the user's Drive. The folder id is remembered
// in a small JSON config file kept in the application data folder, so the
// folder can be renamed or moved by the user without losing track of it.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	appDataFolder  = "appDataFolder"
	fileFields     = "id, name, mimeType, modifiedTime"
	// maxDownload bounds the size of a downloaded save file.
	maxDownload = 64 << 20
)

// SheetMimeTypes are the content types of save files.
var SheetMimeTypes = []string{sheetfile.KindJSON.MimeType(), sheetfile.KindZip.MimeType()}

// File describes a file in Drive.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Store is the cloud storage contract used by the HTTP API.
type Store interface {
	// ListFiles returns the non-trashed files in folderID, optionally
	// restricted to the given content types.
	ListFiles(ctx context.Context, folderID string, mimeTypes []string) ([]File, error)
	// FindOrCreateConfiguredFolder returns the id of the sheet folder,
	// creating the folder and its config file when missing.
	FindOrCreateConfiguredFolder(ctx context.Context) (string, error)
	// SaveFile uploads p. An empty targetFileID creates a new file in the
	// sheet folder; otherwise the target's content and name are replaced.
	SaveFile(ctx context.Context, p sheetfile.Payload, name, targetFileID string) (File, error)
	// LoadFile downloads the content of fileID.
	LoadFile(ctx context.Context, fileID string) ([]byte, error)
	// EnsureFilePublic makes fileID readable by anyone with the link.
	EnsureFilePublic(ctx context.Context, fileID string) error
}

// Config names the sheet folder and its config file.
type Config struct {
	FolderName     string
	ConfigFileName string
}

// folderConfig is the content of the config file.
type folderConfig struct {
	FolderID string `json:"folderId"`
}

// Client implements Store over the Drive v3 API.
type Client struct {
	svc    *drivev3.Service
	cfg    Config
	logger *zap.Logger
}

// New creates a Client acting as the owner of ts.
//
// Precondition: ts and logger must be non-nil.
func New(ctx context.Context, ts oauth2.TokenSource, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchFailure, "creating drive service", err)
	}
	return &Client{svc: svc, cfg: cfg, logger: logger}, nil
}

// NewPublic creates an anonymous Client that can only read files shared
// with anyone holding the link.
//
// Postcondition: Returns CONFIG_MISSING when apiKey is empty.
func NewPublic(ctx context.Context, apiKey string, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.CodeConfigMissing, "google api key is not configured")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchFailure, "creating public drive service", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// quote renders s as a Drive query string literal.
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

// mapError classifies a Drive API failure.
func mapError(op string, err error) error {
	if apperr.CodeOf(err) != apperr.CodeUnknown {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.CodeAuthFailure, op, err)
		case http.StatusNotFound:
			return apperr.Wrap(apperr.CodeNotFound, op, err)
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return apperr.Wrap(apperr.CodeAuthFailure, op, err)
	}
	return apperr.Wrap(apperr.CodeFetchFailure, op, err)
}

func (c *Client) logCall(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		c.logger.Warn("drive call failed", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Debug("drive call", fields...)
}

func toFile(f *drivev3.File) File {
	out := File{ID: f.Id, Name: f.Name, MimeType: f.MimeType}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		out.ModifiedTime = t
	}
	return out
}

// ListFiles implements Store.
func (c *Client) ListFiles(ctx context.Context, folderID string, mimeTypes []string) (files []File, err error) {
	start := time.Now()
	defer func() { c.logCall("list", start, err, zap.String("folder_id", folderID), zap.Int("count", len(files))) }()

	q := quote(folderID) + " in parents and trashed = false"
	if len(mimeTypes) > 0 {
		terms := make([]string, len(mimeTypes))
		for i, mt := range mimeTypes {
			terms[i] = "mimeType = " + quote(mt)
		}
		q += " and (" + strings.Join(terms, " or ") + ")"
	}

	files = make([]File, 0)
	call := c.svc.Files.List().
		Q(q).
		OrderBy("modifiedTime desc").
		Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")"))
	err = call.Pages(ctx, func(page *drivev3.FileList) error {
		for _, f := range page.Files {
			files = append(files, toFile(f))
		}
		return nil
	})
	if err != nil {
		return nil, mapError("listing drive files", err)
	}
	return files, nil
}

// findConfigFile returns the config file in the app data folder, or nil.
func (c *Client) findConfigFile(ctx context.Context) (*drivev3.File, error) {
	list, err := c.svc.Files.List().
		Spaces(appDataFolder).
		Q("name = " + quote(c.cfg.ConfigFileName) + " and trashed = false").
		Fields(googleapi.Field("files(" + fileFields + ")")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("finding config file", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return list.Files[0], nil
}

// usableFolder reports whether folderID names an existing, non-trashed folder.
func (c *Client) usableFolder(ctx context.Context, folderID string) (bool, error) {
	f, err := c.svc.Files.Get(folderID).Fields("id, mimeType, trashed").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return false, nil
		}
		return false, mapError("checking sheet folder", err)
	}
	return !f.Trashed && f.MimeType == folderMimeType, nil
}

// FindOrCreateConfiguredFolder implements Store.
func (c *Client) FindOrCreateConfiguredFolder(ctx context.Context) (folderID string, err error) {
	start := time.Now()
	defer func() { c.logCall("folder", start, err, zap.String("folder_id", folderID)) }()

	cfgFile, err := c.findConfigFile(ctx)
	if err != nil {
		return "", err
	}
	if cfgFile != nil {
		data, err := c.LoadFile(ctx, cfgFile.Id)
		if err != nil {
			return "", err
		}
		var fc folderConfig
		if json.Unmarshal(data, &fc) == nil && fc.FolderID != "" {
			ok, err := c.usableFolder(ctx, fc.FolderID)
			if err != nil {
				return "", err
			}
			if ok {
				return fc.FolderID, nil
			}
		}
	}

	folder, err := c.svc.Files.Create(&drivev3.File{Name: c.cfg.FolderName, MimeType: folderMimeType}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", mapError("creating sheet folder", err)
	}

	body, err := json.Marshal(folderConfig{FolderID: folder.Id})
	if err != nil {
		return "", fmt.Errorf("encoding folder config: %w", err)
	}
	media := googleapi.ContentType("application/json")
	if cfgFile != nil {
		_, err = c.svc.Files.Update(cfgFile.Id, &drivev3.File{}).
			Media(bytes.NewReader(body), media).
			Fields("id").
			Context(ctx).
			Do()
	} else {
		_, err = c.svc.Files.Create(&drivev3.File{
			Name:     c.cfg.ConfigFileName,
			MimeType: "application/json",
			Parents:  []string{appDataFolder},
		}).
			Media(bytes.NewReader(body), media).
			Fields("id").
			Context(ctx).
			Do()
	}
	if err != nil {
		return "", mapError("writing folder config", err)
	}
	return folder.Id, nil
}

// SaveFile implements Store.
func (c *Client) SaveFile(ctx context.Context, p sheetfile.Payload, name, targetFileID string) (file File, err error) {
	start := time.Now()
	defer func() {
		c.logCall("save", start, err, zap.String("file_id", file.ID), zap.Int("bytes", len(p.Data)))
	}()

	media := googleapi.ContentType(p.MimeType)
	var f *drivev3.File
	if targetFileID != "" {
		f, err = c.svc.Files.Update(targetFileID, &drivev3.File{Name: name, MimeType: p.MimeType}).
			Media(bytes.NewReader(p.Data), media).
			Fields(fileFields).
			Context(ctx).
			Do()
		if err != nil {
			return File{}, mapError("updating drive file", err)
		}
		return toFile(f), nil
	}

	folderID, err := c.FindOrCreateConfiguredFolder(ctx)
	if err != nil {
		return File{}, err
	}
	f, err = c.svc.Files.Create(&drivev3.File{Name: name, MimeType: p.MimeType, Parents: []string{folderID}}).
		Media(bytes.NewReader(p.Data), media).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, mapError("creating drive file", err)
	}
	return toFile(f), nil
}

// LoadFile implements Store.
func (c *Client) LoadFile(ctx context.Context, fileID string) (data []byte, err error) {
	start := time.Now()
	defer func() { c.logCall("load", start, err, zap.String("file_id", fileID), zap.Int("bytes", len(data))) }()

	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, mapError("downloading drive file", err)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchFailure, "reading drive file", err)
	}
	if len(data) > maxDownload {
		return nil, apperr.New(apperr.CodeParseFailure, "drive file is too large")
	}
	return data, nil
}

// EnsureFilePublic implements Store.
func (c *Client) EnsureFilePublic(ctx context.Context, fileID string) (err error) {
	start := time.Now()
	defer func() { c.logCall("share", start, err, zap.String("file_id", fileID)) }()

	list, err := c.svc.Permissions.List(fileID).
		Fields("permissions(id, type, role)").
		Context(ctx).
		Do()
	if err != nil {
		return mapError("listing file permissions", err)
	}
	for _, p := range list.Permissions {
		if p.Type == "anyone" && (p.Role == "reader" || p.Role == "commenter" || p.Role == "writer") {
			return nil
		}
	}
	_, err = c.svc.Permissions.Create(fileID, &drivev3.Permission{Type: "anyone", Role: "reader"}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return mapError("sharing drive file", err)
	}
	return nil
}
