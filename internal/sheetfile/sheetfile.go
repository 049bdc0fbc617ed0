// Package sheetfile converts character records to and from their save-file
// form: a JSON document, or a zip archive holding the JSON manifest plus the
// image files it references.
package sheetfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/klauspost/compress/zip"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

// CurrentVersion is the save-format version written by Encode. Documents
// without a version are read as version 1.
const CurrentVersion = 1

const (
	manifestName = "character.json"
	imageDir     = "images/"

	// maxEntrySize bounds any single decompressed archive entry.
	maxEntrySize = 32 << 20
	maxNameRunes = 100
)

// maxArchiveSize bounds the decompressed size of all entries read from one
// archive.
var maxArchiveSize int64 = 64 << 20

var zipSignature = []byte("PK\x03\x04")

// Kind is the container form of a save file.
type Kind string

const (
	KindJSON Kind = "json"
	KindZip  Kind = "zip"
)

// MimeType returns the content type of the form.
func (k Kind) MimeType() string {
	if k == KindZip {
		return "application/zip"
	}
	return "application/json"
}

// Extension returns the file extension of the form, without the dot.
func (k Kind) Extension() string {
	return string(k)
}

// Payload is an encoded save file.
type Payload struct {
	Kind      Kind
	Data      []byte
	MimeType  string
	Extension string
}

// document is the on-disk JSON shape: the record fields at top level plus
// the format version.
type document struct {
	Version int `json:"version"`
	*character.Record
}

// Codec encodes and decodes save files against one set of rule tables.
type Codec struct {
	tables *ruleset.Tables
}

// NewCodec creates a Codec.
//
// Precondition: t must be non-nil.
func NewCodec(t *ruleset.Tables) *Codec {
	return &Codec{tables: t}
}

// Detect reports the container form of data by its leading signature.
func Detect(data []byte) Kind {
	if bytes.HasPrefix(data, zipSignature) {
		return KindZip
	}
	return KindJSON
}

// Encode serializes r. A record with images becomes a zip archive; any other
// record is plain JSON.
//
// Precondition: r must be non-nil.
func (c *Codec) Encode(r *character.Record) (Payload, error) {
	manifest, err := marshalDocument(r)
	if err != nil {
		return Payload{}, err
	}
	if len(r.Character.Images) == 0 {
		return newPayload(KindJSON, manifest), nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(manifestName)
	if err != nil {
		return Payload{}, fmt.Errorf("creating manifest entry: %w", err)
	}
	if _, err := w.Write(manifest); err != nil {
		return Payload{}, fmt.Errorf("writing manifest entry: %w", err)
	}
	for _, img := range r.Character.Images {
		// Images are already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{Name: imageDir + img.Key, Method: zip.Store})
		if err != nil {
			return Payload{}, fmt.Errorf("creating image entry %q: %w", img.Key, err)
		}
		if _, err := w.Write(img.Data); err != nil {
			return Payload{}, fmt.Errorf("writing image entry %q: %w", img.Key, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Payload{}, fmt.Errorf("closing archive: %w", err)
	}
	return newPayload(KindZip, buf.Bytes()), nil
}

func newPayload(kind Kind, data []byte) Payload {
	return Payload{Kind: kind, Data: data, MimeType: kind.MimeType(), Extension: kind.Extension()}
}

func marshalDocument(r *character.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Version: CurrentVersion, Record: r}); err != nil {
		return nil, fmt.Errorf("encoding character record: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a save file in either form, normalizes it against the rule
// tables, and validates it.
//
// Postcondition: Returns a complete record, or nil and an apperr error of
// kind PARSE_FAILURE or VALIDATION_FAILURE. No partial record is returned.
func (c *Codec) Decode(data []byte) (*character.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.New(apperr.CodeParseFailure, "empty save file")
	}

	var (
		r   *character.Record
		err error
	)
	if Detect(data) == KindZip {
		r, err = c.decodeZip(data)
	} else {
		r, err = c.decodeJSON(data)
		if err == nil && len(r.Character.Images) > 0 {
			err = apperr.New(apperr.CodeParseFailure, "plain JSON save file references images")
		}
	}
	if err != nil {
		return nil, err
	}
	if err := r.Validate(c.tables); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Codec) decodeJSON(data []byte) (*character.Record, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, apperr.Wrap(apperr.CodeParseFailure, "malformed save file", err)
	}
	if _, ok := keys["character"]; !ok {
		return nil, apperr.New(apperr.CodeParseFailure, "save file has no character section")
	}

	doc := document{Record: &character.Record{}}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Wrap(apperr.CodeParseFailure, "malformed save file", err)
	}
	version := doc.Version
	if version == 0 {
		version = 1
	}
	if version < 0 || version > CurrentVersion {
		return nil, apperr.WithMetadata(apperr.CodeValidationFailure,
			fmt.Sprintf("unsupported save-format version %d", doc.Version),
			map[string]string{"detail": fmt.Sprintf("version %d", doc.Version)})
	}

	doc.Record.Normalize(c.tables)
	return doc.Record, nil
}

func (c *Codec) decodeZip(data []byte) (*character.Record, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParseFailure, "malformed save archive", err)
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	mf, ok := entries[manifestName]
	if !ok {
		return nil, apperr.New(apperr.CodeParseFailure, "save archive has no "+manifestName)
	}
	budget := maxArchiveSize
	manifest, err := readEntry(mf, &budget)
	if err != nil {
		return nil, err
	}
	r, err := c.decodeJSON(manifest)
	if err != nil {
		return nil, err
	}
	// Image count, keys, and types are checked before any image is inflated.
	if err := r.Validate(c.tables); err != nil {
		return nil, err
	}

	for i := range r.Character.Images {
		img := &r.Character.Images[i]
		f, ok := entries[imageDir+img.Key]
		if !ok {
			return nil, apperr.New(apperr.CodeParseFailure, fmt.Sprintf("save archive is missing image %q", img.Key))
		}
		b, err := readEntry(f, &budget)
		if err != nil {
			return nil, err
		}
		if len(b) > 0 {
			img.Data = b
		}
	}
	return r, nil
}

// readEntry inflates f, charging its size against budget.
func readEntry(f *zip.File, budget *int64) ([]byte, error) {
	limit := min(int64(maxEntrySize), *budget)
	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParseFailure, "opening archive entry "+f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParseFailure, "reading archive entry "+f.Name, err)
	}
	if int64(len(b)) > limit {
		if limit < maxEntrySize {
			return nil, apperr.New(apperr.CodeParseFailure, "save archive too large")
		}
		return nil, apperr.New(apperr.CodeParseFailure, "archive entry too large: "+f.Name)
	}
	*budget -= int64(len(b))
	return b, nil
}

// FileName returns the download name for r in the given form: the character
// name with path and reserved characters replaced, or "character" when the
// name is blank.
func FileName(r *character.Record, kind Kind) string {
	name := strings.Map(func(c rune) rune {
		switch {
		case unicode.IsControl(c):
			return -1
		case strings.ContainsRune(`\/:*?"<>|`, c):
			return '_'
		}
		return c
	}, r.Character.Name)
	name = strings.Trim(name, " .")
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = string(runes[:maxNameRunes])
	}
	if name == "" {
		name = "character"
	}
	return name + "." + kind.Extension()
}
