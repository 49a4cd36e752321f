package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/soyeahso/shopchat/internal/domain"
)

// PointerStore is the durable local identity/session pointer store.
// The identity resolver (plus explicit clear commands) is the only writer;
// every component needing (userId, sessionId) reads through it.
// Writes are atomic replaces.
type PointerStore interface {
	// Principal returns the persisted authenticated user blob.
	// A missing or corrupt blob reads as absent.
	Principal() (domain.Principal, bool)

	// SetPrincipal persists the authenticated user blob.
	SetPrincipal(p domain.Principal) error

	// ClearPrincipal removes the persisted principal.
	ClearPrincipal() error

	// Pointers returns the persisted (userId, sessionId) pair.
	// Either may be empty.
	Pointers() (userID, sessionID string)

	// SetPointers atomically replaces the (userId, sessionId) pair.
	SetPointers(userID, sessionID string) error

	// Clear wipes the chat pointers, leaving the principal intact.
	Clear() error
}

// SQLitePointerStore implements PointerStore backed by SQLite.
type SQLitePointerStore struct {
	db *DB
}

// NewSQLitePointerStore creates a pointer store using the given database.
func NewSQLitePointerStore(db *DB) *SQLitePointerStore {
	return &SQLitePointerStore{db: db}
}

func (s *SQLitePointerStore) Principal() (domain.Principal, bool) {
	var blob string
	err := s.db.sql.QueryRow(`SELECT blob FROM principal WHERE id = 1`).Scan(&blob)
	if err != nil {
		return domain.Principal{}, false
	}

	var p domain.Principal
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		// Corrupt blob is treated as absent.
		s.db.log.Warn().Err(err).Msg("discarding corrupt principal blob")
		return domain.Principal{}, false
	}
	return p, true
}

func (s *SQLitePointerStore) SetPrincipal(p domain.Principal) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.sql.Exec(
		`INSERT INTO principal (id, blob, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		string(blob), time.Now().Format(time.DateTime),
	)
	return err
}

func (s *SQLitePointerStore) ClearPrincipal() error {
	_, err := s.db.sql.Exec(`DELETE FROM principal WHERE id = 1`)
	return err
}

func (s *SQLitePointerStore) Pointers() (string, string) {
	var userID, sessionID string
	err := s.db.sql.QueryRow(`SELECT user_id, session_id FROM chat_pointers WHERE id = 1`).
		Scan(&userID, &sessionID)
	if err != nil {
		return "", ""
	}
	return userID, sessionID
}

func (s *SQLitePointerStore) SetPointers(userID, sessionID string) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO chat_pointers (id, user_id, session_id, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   session_id = excluded.session_id,
		   updated_at = excluded.updated_at`,
		userID, sessionID, time.Now().Format(time.DateTime),
	)
	return err
}

func (s *SQLitePointerStore) Clear() error {
	_, err := s.db.sql.Exec(`DELETE FROM chat_pointers WHERE id = 1`)
	return err
}

// MemoryPointerStore is an in-memory PointerStore implementation for tests.
type MemoryPointerStore struct {
	mu        sync.RWMutex
	principal *domain.Principal
	userID    string
	sessionID string
}

// NewMemoryPointerStore creates an in-memory pointer store.
func NewMemoryPointerStore() *MemoryPointerStore {
	return &MemoryPointerStore{}
}

func (s *MemoryPointerStore) Principal() (domain.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return domain.Principal{}, false
	}
	return *s.principal, true
}

func (s *MemoryPointerStore) SetPrincipal(p domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = &p
	return nil
}

func (s *MemoryPointerStore) ClearPrincipal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = nil
	return nil
}

func (s *MemoryPointerStore) Pointers() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.sessionID
}

func (s *MemoryPointerStore) SetPointers(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.sessionID = sessionID
	return nil
}

func (s *MemoryPointerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.sessionID = ""
	return nil
}
