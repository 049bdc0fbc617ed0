// Package session tracks the character sheets open for editing. Each open
// sheet owns one in-memory record; mutations are validated on a copy before
// they replace it, and local persistence is debounced.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

// saveTimeout bounds a single autosave write.
const saveTimeout = 10 * time.Second

// Store persists session snapshots locally.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
}

// Config tunes a Manager.
type Config struct {
	// AutosaveDelay is the quiet period before an edited sheet is written.
	AutosaveDelay time.Duration
	// MaxSessions bounds the number of open sheets; 0 means unbounded.
	MaxSessions int
}

// Options describe how a sheet is opened.
type Options struct {
	// ID reuses a known sheet id, e.g. one restored from local storage.
	// Empty assigns a new id.
	ID string
	// DriveFileID links the sheet to a cloud file.
	DriveFileID string
}

// Snapshot is a point-in-time copy of an open sheet with its derived values.
type Snapshot struct {
	ID          string            `json:"id"`
	Record      *character.Record `json:"record"`
	Derived     character.Derived `json:"derived"`
	ReadOnly    bool              `json:"readOnly"`
	DriveFileID string            `json:"driveFileId,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Info summarizes an open sheet for listings.
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ReadOnly    bool      `json:"readOnly"`
	DriveFileID string    `json:"driveFileId,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Session is one open sheet.
type Session struct {
	id       string
	readOnly bool

	mu          sync.Mutex
	record      *character.Record
	driveFileID string
	updatedAt   time.Time
	saving      bool
	autosave    *Debouncer
}

// Manager tracks all open sheets. All methods are safe for concurrent use.
type Manager struct {
	tables *ruleset.Tables
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager. A nil store disables autosave.
//
// Precondition: tables and logger must be non-nil.
func NewManager(tables *ruleset.Tables, store Store, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		tables:   tables,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open registers rec as an editable sheet.
//
// Precondition: rec must be non-nil; it is normalized and validated, and the
// caller must not retain it.
// Postcondition: Returns the snapshot of the new session, or CONFLICT when the
// id is taken or the session limit is reached.
func (m *Manager) Open(rec *character.Record, opts Options) (Snapshot, error) {
	return m.open(rec, opts, false)
}

// OpenShared registers rec as a read-only view of a shared cloud file.
// Read-only sessions are never autosaved. A file already open read-only
// keeps its session, refreshed with rec.
func (m *Manager) OpenShared(rec *character.Record, fileID string) (Snapshot, error) {
	return m.open(rec, Options{DriveFileID: fileID}, true)
}

func (m *Manager) open(rec *character.Record, opts Options, readOnly bool) (Snapshot, error) {
	rec.Normalize(m.tables)
	if err := rec.Validate(m.tables); err != nil {
		return Snapshot{}, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:          id,
		readOnly:    readOnly,
		record:      rec,
		driveFileID: opts.DriveFileID,
		updatedAt:   m.now(),
	}
	if !readOnly && m.store != nil && m.cfg.AutosaveDelay > 0 {
		s.autosave = NewDebouncer(m.cfg.AutosaveDelay, func() { m.save(s) })
	}

	m.mu.Lock()
	if readOnly {
		if shared := m.sharedLocked(opts.DriveFileID); shared != nil {
			m.mu.Unlock()
			shared.mu.Lock()
			defer shared.mu.Unlock()
			shared.record = rec
			shared.updatedAt = m.now()
			return m.snapshotLocked(shared), nil
		}
	}
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return Snapshot{}, apperr.New(apperr.CodeConflict, fmt.Sprintf("sheet %q is already open", id))
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions && !m.evictSharedLocked() {
		m.mu.Unlock()
		return Snapshot{}, apperr.WithMetadata(apperr.CodeConflict,
			fmt.Sprintf("too many open sheets (limit %d)", m.cfg.MaxSessions),
			map[string]string{"reason": apperr.ReasonSessionLimit})
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug("sheet opened", zap.String("sheet_id", id), zap.Bool("read_only", readOnly))
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.snapshotLocked(s), nil
}

// sharedLocked returns the read-only session viewing fileID. The caller must
// hold m.mu.
func (m *Manager) sharedLocked(fileID string) *Session {
	for _, s := range m.sessions {
		if !s.readOnly {
			continue
		}
		s.mu.Lock()
		match := s.driveFileID == fileID
		s.mu.Unlock()
		if match {
			return s
		}
	}
	return nil
}

// evictSharedLocked drops the least recently opened read-only session to make
// room for another. It reports false when every open sheet is editable. The
// caller must hold m.mu.
func (m *Manager) evictSharedLocked() bool {
	var (
		oldest *Session
		at     time.Time
	)
	for _, s := range m.sessions {
		if !s.readOnly {
			continue
		}
		s.mu.Lock()
		updated := s.updatedAt
		s.mu.Unlock()
		if oldest == nil || updated.Before(at) {
			oldest, at = s, updated
		}
	}
	if oldest == nil {
		return false
	}
	delete(m.sessions, oldest.id)
	m.logger.Debug("shared sheet evicted", zap.String("sheet_id", oldest.id))
	return true
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("sheet %q is not open", id))
	}
	return s, nil
}

// snapshotLocked copies the session state. The caller must hold s.mu.
func (m *Manager) snapshotLocked(s *Session) Snapshot {
	rec := s.record.Clone()
	return Snapshot{
		ID:          s.id,
		Record:      rec,
		Derived:     character.Derive(rec, m.tables),
		ReadOnly:    s.readOnly,
		DriveFileID: s.driveFileID,
		UpdatedAt:   s.updatedAt,
	}
}

// Get returns a snapshot of an open sheet.
func (m *Manager) Get(id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.snapshotLocked(s), nil
}

// List returns every open sheet, most recently updated first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, Info{
			ID:          s.id,
			Name:        s.record.Character.Name,
			ReadOnly:    s.readOnly,
			DriveFileID: s.driveFileID,
			UpdatedAt:   s.updatedAt,
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of open sheets.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Mutate applies fn to a copy of the sheet's record and, if fn succeeds and
// the result validates, makes the copy current and schedules an autosave.
//
// Postcondition: On any error the sheet is unchanged. Read-only sheets fail
// with READ_ONLY.
func (m *Manager) Mutate(id string, fn func(r *character.Record) error) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return Snapshot{}, apperr.New(apperr.CodeReadOnly, fmt.Sprintf("sheet %q is a read-only shared view", id))
	}
	next := s.record.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if err := next.Validate(m.tables); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.record = next
	s.updatedAt = m.now()
	snap := m.snapshotLocked(s)
	s.mu.Unlock()

	if s.autosave != nil {
		s.autosave.Trigger()
	}
	return snap, nil
}

// Replace swaps in a freshly loaded record wholesale.
//
// Precondition: rec must be non-nil and must not be retained by the caller.
func (m *Manager) Replace(id string, rec *character.Record) (Snapshot, error) {
	rec.Normalize(m.tables)
	return m.Mutate(id, func(r *character.Record) error {
		*r = *rec
		return nil
	})
}

// SetDriveFileID links the sheet to a cloud file.
func (m *Manager) SetDriveFileID(id, fileID string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.driveFileID = fileID
	s.mu.Unlock()
	return nil
}

// BeginSave marks a cloud save of the sheet as in flight and returns the
// snapshot to upload.
//
// Postcondition: Fails with CONFLICT while another save of the same sheet
// is in flight; on success the caller must call EndSave.
func (m *Manager) BeginSave(id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return Snapshot{}, apperr.New(apperr.CodeConflict, fmt.Sprintf("sheet %q is already being saved", id))
	}
	s.saving = true
	return m.snapshotLocked(s), nil
}

// EndSave clears the in-flight flag set by BeginSave. A non-empty fileID
// links the sheet to the saved cloud file.
func (m *Manager) EndSave(id, fileID string) {
	s, err := m.lookup(id)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.saving = false
	if fileID != "" {
		s.driveFileID = fileID
	}
	s.mu.Unlock()
}

// Close flushes any pending autosave and forgets the sheet.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return apperr.New(apperr.CodeNotFound, fmt.Sprintf("sheet %q is not open", id))
	}
	if s.autosave != nil {
		s.autosave.Flush()
		s.autosave.Stop()
	}
	m.logger.Debug("sheet closed", zap.String("sheet_id", id))
	return nil
}

// FlushAll writes every pending autosave immediately. Used at shutdown.
func (m *Manager) FlushAll() int {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	flushed := 0
	for _, s := range sessions {
		if s.autosave != nil && s.autosave.Flush() {
			flushed++
		}
	}
	return flushed
}

func (m *Manager) save(s *Session) {
	s.mu.Lock()
	snap := m.snapshotLocked(s)
	s.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := m.store.Save(ctx, snap); err != nil {
		m.logger.Error("autosave failed",
			zap.String("sheet_id", snap.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("autosaved",
		zap.String("sheet_id", snap.ID),
		zap.Duration("elapsed", time.Since(start)),
	)
}
