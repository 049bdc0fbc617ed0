package session

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/postgres"
)

// SheetWriter is the subset of postgres.SheetRepository used for autosave.
type SheetWriter interface {
	Upsert(ctx context.Context, s postgres.StoredSheet) (postgres.StoredSheet, error)
}

// RepositoryStore autosaves snapshots as encoded save files.
type RepositoryStore struct {
	repo  SheetWriter
	codec *sheetfile.Codec
}

// NewRepositoryStore creates a RepositoryStore.
//
// Precondition: repo and codec must be non-nil.
func NewRepositoryStore(repo SheetWriter, codec *sheetfile.Codec) *RepositoryStore {
	return &RepositoryStore{repo: repo, codec: codec}
}

// Save encodes the snapshot's record in its save-file form and upserts it.
func (s *RepositoryStore) Save(ctx context.Context, snap Snapshot) error {
	p, err := s.codec.Encode(snap.Record)
	if err != nil {
		return fmt.Errorf("encoding sheet %s: %w", snap.ID, err)
	}
	_, err = s.repo.Upsert(ctx, postgres.StoredSheet{
		ID:          snap.ID,
		Name:        snap.Record.Character.Name,
		DriveFileID: snap.DriveFileID,
		Format:      string(p.Kind),
		Payload:     p.Data,
	})
	return err
}
