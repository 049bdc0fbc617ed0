package drive_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/drive"
)

type fakeFile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
	Trashed  bool     `json:"trashed"`

	data  []byte
	perms []map[string]string
}

// fakeDrive is an in-memory stand-in for the parts of the Drive v3 REST API
// the client uses.
type fakeDrive struct {
	mu      sync.Mutex
	files   map[string]*fakeFile
	nextID  int
	token   string
	apiKey  string
	creates int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: map[string]*fakeFile{}, token: "good", apiKey: "key"}
}

func (f *fakeDrive) add(file *fakeFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file.ID] = file
}

func (f *fakeDrive) get(id string) *fakeFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[id]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// readBody returns the metadata and media of a create or update request.
func readBody(r *http.Request) (meta fakeFile, media []byte, err error) {
	mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mt, "multipart/") {
		err = json.NewDecoder(r.Body).Decode(&meta)
		return meta, nil, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		return meta, nil, err
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		return meta, nil, err
	}
	part, err = mr.NextPart()
	if err != nil {
		return meta, nil, err
	}
	media, err = io.ReadAll(part)
	return meta, media, err
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	anonymous := r.URL.Query().Get("key") == f.apiKey
	if !anonymous && r.Header.Get("Authorization") != "Bearer "+f.token {
		apiError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	p := r.URL.Path
	i := strings.LastIndex(p, "/files")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	var parts []string
	if rest := strings.Trim(p[i+len("/files"):], "/"); rest != "" {
		parts = strings.Split(rest, "/")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		f.list(w, r)
	case len(parts) == 0 && r.Method == http.MethodPost:
		if anonymous {
			apiError(w, http.StatusForbidden, "anonymous write")
			return
		}
		meta, media, err := readBody(r)
		if err != nil {
			apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.nextID++
		f.creates++
		file := &fakeFile{ID: fmt.Sprintf("id%d", f.nextID), Name: meta.Name, MimeType: meta.MimeType, Parents: meta.Parents, data: media}
		f.files[file.ID] = file
		writeJSON(w, http.StatusOK, file)
	case len(parts) == 1:
		file, ok := f.files[parts[0]]
		if !ok || (anonymous && !file.public()) {
			apiError(w, http.StatusNotFound, "File not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("alt") == "media" {
				_, _ = w.Write(file.data)
				return
			}
			writeJSON(w, http.StatusOK, file)
		case http.MethodPatch:
			meta, media, err := readBody(r)
			if err != nil {
				apiError(w, http.StatusBadRequest, err.Error())
				return
			}
			if meta.Name != "" {
				file.Name = meta.Name
			}
			if meta.MimeType != "" {
				file.MimeType = meta.MimeType
			}
			if media != nil {
				file.data = media
			}
			writeJSON(w, http.StatusOK, file)
		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "permissions":
		file, ok := f.files[parts[0]]
		if !ok {
			apiError(w, http.StatusNotFound, "File not found")
			return
		}
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{"permissions": file.perms})
			return
		}
		var perm map[string]string
		_ = json.NewDecoder(r.Body).Decode(&perm)
		perm["id"] = fmt.Sprintf("perm%d", len(file.perms))
		file.perms = append(file.perms, perm)
		writeJSON(w, http.StatusOK, perm)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeFile) public() bool {
	for _, p := range f.perms {
		if p["type"] == "anyone" {
			return true
		}
	}
	return false
}

func (f *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	appData := r.URL.Query().Get("spaces") == "appDataFolder"
	out := make([]*fakeFile, 0)
	for _, file := range f.files {
		if file.Trashed && strings.Contains(q, "trashed = false") {
			continue
		}
		match := false
		for _, parent := range file.Parents {
			if appData && parent == "appDataFolder" && strings.Contains(q, "name = '"+file.Name+"'") {
				match = true
			}
			if !appData && strings.Contains(q, "'"+parent+"' in parents") {
				match = true
			}
		}
		if match && strings.Contains(q, "mimeType =") && !strings.Contains(q, "mimeType = '"+file.MimeType+"'") {
			match = false
		}
		if match {
			out = append(out, file)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

func newClient(t *testing.T, fd *fakeDrive, token string) *drive.Client {
	t.Helper()
	srv := httptest.NewServer(fd)
	t.Cleanup(srv.Close)
	c, err := drive.New(context.Background(),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		drive.Config{FolderName: "Aionia", ConfigFileName: "config.json"},
		zaptest.NewLogger(t),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return c
}

func newPublic(t *testing.T, fd *fakeDrive) *drive.Client {
	t.Helper()
	srv := httptest.NewServer(fd)
	t.Cleanup(srv.Close)
	c, err := drive.NewPublic(context.Background(), fd.apiKey, zaptest.NewLogger(t), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func TestFindOrCreateConfiguredFolder_CreatesOnce(t *testing.T) {
	fd := newFakeDrive()
	c := newClient(t, fd, "good")
	ctx := context.Background()

	id, err := c.FindOrCreateConfiguredFolder(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "Aionia", fd.get(id).Name)
	assert.Equal(t, 2, fd.creates, "folder and config file")

	again, err := c.FindOrCreateConfiguredFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 2, fd.creates)
}

func TestFindOrCreateConfiguredFolder_RecreatesTrashedFolder(t *testing.T) {
	fd := newFakeDrive()
	fd.add(&fakeFile{ID: "old", Name: "Aionia", MimeType: "application/vnd.google-apps.folder", Trashed: true})
	fd.add(&fakeFile{ID: "cfg", Name: "config.json", MimeType: "application/json",
		Parents: []string{"appDataFolder"}, data: []byte(`{"folderId":"old"}`)})
	c := newClient(t, fd, "good")

	id, err := c.FindOrCreateConfiguredFolder(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "old", id)
	assert.JSONEq(t, fmt.Sprintf(`{"folderId":%q}`, id), string(fd.get("cfg").data), "config is rewritten in place")
}

func TestSaveLoadAndList(t *testing.T) {
	fd := newFakeDrive()
	c := newClient(t, fd, "good")
	ctx := context.Background()

	p := sheetfile.Payload{Kind: sheetfile.KindJSON, Data: []byte(`{"version":1}`), MimeType: sheetfile.KindJSON.MimeType()}
	saved, err := c.SaveFile(ctx, p, "リラ.json", "")
	require.NoError(t, err)
	assert.Equal(t, "リラ.json", saved.Name)

	data, err := c.LoadFile(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Data, data)

	p.Data = []byte(`{"version":1,"character":{}}`)
	updated, err := c.SaveFile(ctx, p, "リラ2.json", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, p.Data, fd.get(saved.ID).data)

	folderID, err := c.FindOrCreateConfiguredFolder(ctx)
	require.NoError(t, err)
	files, err := c.ListFiles(ctx, folderID, drive.SheetMimeTypes)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "リラ2.json", files[0].Name)

	files, err = c.ListFiles(ctx, folderID, []string{"image/png"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEnsureFilePublic_AddsPermissionOnce(t *testing.T) {
	fd := newFakeDrive()
	fd.add(&fakeFile{ID: "f1", Name: "a.json", data: []byte("{}")})
	c := newClient(t, fd, "good")
	ctx := context.Background()

	require.NoError(t, c.EnsureFilePublic(ctx, "f1"))
	require.NoError(t, c.EnsureFilePublic(ctx, "f1"))
	assert.Len(t, fd.get("f1").perms, 1)
	assert.Equal(t, "reader", fd.get("f1").perms[0]["role"])

	data, err := newPublic(t, fd).LoadFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)
}

func TestErrorMapping(t *testing.T) {
	fd := newFakeDrive()
	fd.add(&fakeFile{ID: "private", data: []byte("{}")})
	ctx := context.Background()

	_, err := newClient(t, fd, "expired").LoadFile(ctx, "f1")
	assert.Equal(t, apperr.CodeAuthFailure, apperr.CodeOf(err))

	_, err = newClient(t, fd, "good").LoadFile(ctx, "missing")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = newPublic(t, fd).LoadFile(ctx, "private")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err), "unshared files are invisible to anonymous readers")

	_, err = drive.NewPublic(ctx, "", zaptest.NewLogger(t))
	assert.Equal(t, apperr.CodeConfigMissing, apperr.CodeOf(err))
}

func TestFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c, err := drive.New(context.Background(),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "good"}),
		drive.Config{FolderName: "Aionia", ConfigFileName: "config.json"},
		zaptest.NewLogger(t),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	_, err = c.LoadFile(context.Background(), "f1")
	assert.Equal(t, apperr.CodeFetchFailure, apperr.CodeOf(err))
}
