package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSheetNotFound is returned when a sheet lookup yields no results.
var ErrSheetNotFound = errors.New("sheet not found")

// Sheet payload formats.
const (
	FormatJSON = "json"
	FormatZip  = "zip"
)

// StoredSheet is one locally persisted save file.
type StoredSheet struct {
	ID          string
	Name        string
	DriveFileID string
	// Format is FormatJSON or FormatZip and selects the column Payload lives in.
	Format    string
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SheetSummary lists a stored sheet without its payload.
type SheetSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DriveFileID string    `json:"driveFileId,omitempty"`
	Format      string    `json:"format"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SheetRepository provides sheet persistence operations.
type SheetRepository struct {
	db *pgxpool.Pool
}

// NewSheetRepository creates a SheetRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSheetRepository(db *pgxpool.Pool) *SheetRepository {
	return &SheetRepository{db: db}
}

// Upsert inserts or replaces the sheet with s.ID.
//
// Precondition: s.ID must be non-empty; s.Format must be FormatJSON or FormatZip.
// Postcondition: Returns s with timestamps set, or a non-nil error.
func (r *SheetRepository) Upsert(ctx context.Context, s StoredSheet) (StoredSheet, error) {
	var document, archive []byte
	switch s.Format {
	case FormatJSON:
		document = s.Payload
	case FormatZip:
		archive = s.Payload
	default:
		return StoredSheet{}, fmt.Errorf("unknown sheet format %q", s.Format)
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO sheets (id, name, drive_file_id, format, document, archive)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name          = EXCLUDED.name,
			drive_file_id = EXCLUDED.drive_file_id,
			format        = EXCLUDED.format,
			document      = EXCLUDED.document,
			archive       = EXCLUDED.archive,
			updated_at    = NOW()
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.DriveFileID, s.Format, document, archive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return StoredSheet{}, fmt.Errorf("upserting sheet %s: %w", s.ID, err)
	}
	return s, nil
}

// Get retrieves a sheet with its payload.
//
// Postcondition: Returns the StoredSheet or ErrSheetNotFound.
func (r *SheetRepository) Get(ctx context.Context, id string) (StoredSheet, error) {
	var (
		s                 StoredSheet
		document, archive []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, drive_file_id, format, document, archive, created_at, updated_at
		FROM sheets WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.DriveFileID, &s.Format, &document, &archive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredSheet{}, ErrSheetNotFound
		}
		return StoredSheet{}, fmt.Errorf("querying sheet %s: %w", id, err)
	}
	if s.Format == FormatZip {
		s.Payload = archive
	} else {
		s.Payload = document
	}
	return s, nil
}

// List returns every stored sheet, most recently updated first.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *SheetRepository) List(ctx context.Context) ([]SheetSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, drive_file_id, format, updated_at
		FROM sheets ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}
	defer rows.Close()

	out := make([]SheetSummary, 0)
	for rows.Next() {
		var s SheetSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.DriveFileID, &s.Format, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning sheet row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a stored sheet.
//
// Postcondition: Returns ErrSheetNotFound when no row had the id.
func (r *SheetRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sheets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting sheet %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSheetNotFound
	}
	return nil
}
