// Package store provides storage backends for counseling sessions, stage
// progress, conversation turns, and risk logs.
//
// It includes an in-memory store for tests and single-process use, plus
// SQLite and PostgreSQL backends.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

// Store is the persistence contract consumed by the conversation service.
// Absence of a progress record (nil, nil) means the session is uninitialized;
// the caller creates the stage-one default before first use.
type Store interface {
	CreateSession(session models.Session) error
	GetSession(sessionID string) (*models.Session, error)

	GetStageProgress(sessionID string) (*models.StageProgress, error)
	SaveStageProgress(progress models.StageProgress) error

	AppendTurn(turn models.ConversationTurn) error
	GetRecentTurns(sessionID string, limit int) ([]models.ConversationTurn, error)

	AddRiskLog(entry models.RiskLogEntry) error
	GetRiskLogs(sessionID string) ([]models.RiskLogEntry, error)

	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite,
// connection URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a mutex-guarded map-backed store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	progress map[string]models.StageProgress
	turns    map[string][]models.ConversationTurn
	riskLogs map[string][]models.RiskLogEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.Session),
		progress: make(map[string]models.StageProgress),
		turns:    make(map[string][]models.ConversationTurn),
		riskLogs: make(map[string][]models.RiskLogEntry),
	}
}

// CreateSession stores a new session record.
func (s *InMemoryStore) CreateSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session, or nil if it does not exist.
func (s *InMemoryStore) GetSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// GetStageProgress retrieves the progress record for a session, or nil if
// the session has not been initialized.
func (s *InMemoryStore) GetStageProgress(sessionID string) (*models.StageProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.progress[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *progress.Clone()
	return &cp, nil
}

// SaveStageProgress stores or replaces the progress record for a session.
func (s *InMemoryStore) SaveStageProgress(progress models.StageProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progress.SessionID] = *progress.Clone()
	return nil
}

// AppendTurn adds a conversation turn in insertion order.
func (s *InMemoryStore) AppendTurn(turn models.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

// GetRecentTurns returns up to limit most recent turns in chronological
// order. limit <= 0 returns all turns.
func (s *InMemoryStore) GetRecentTurns(sessionID string, limit int) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.ConversationTurn, len(all))
	copy(out, all)
	return out, nil
}

// AddRiskLog appends a risk log entry for a session.
func (s *InMemoryStore) AddRiskLog(entry models.RiskLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.riskLogs[entry.SessionID] = append(s.riskLogs[entry.SessionID], entry)
	return nil
}

// GetRiskLogs returns the risk log entries for a session, oldest first.
func (s *InMemoryStore) GetRiskLogs(sessionID string) ([]models.RiskLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RiskLogEntry, len(s.riskLogs[sessionID]))
	copy(out, s.riskLogs[sessionID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
