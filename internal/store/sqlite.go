// Package store provides storage backends for counseling sessions.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists counseling data in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path to the
// database; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// CreateSession stores a new session record.
func (s *SQLiteStore) CreateSession(session models.Session) error {
	tags, err := toJSON(session.IssueTags)
	if err != nil {
		return err
	}
	profile, err := toJSON(session.Profile)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, user_id, issue_tags, profile, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, tags, profile, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", session.ID)
	return nil
}

// GetSession retrieves a session, or nil if it does not exist.
func (s *SQLiteStore) GetSession(sessionID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, issue_tags, profile, created_at, updated_at FROM sessions WHERE id = ?`,
		sessionID,
	)
	var session models.Session
	var tags, profile sql.NullString
	err := row.Scan(&session.ID, &session.UserID, &tags, &profile, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}
	if err := fromJSON(tags, &session.IssueTags); err != nil {
		return nil, err
	}
	if err := fromJSON(profile, &session.Profile); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetStageProgress retrieves the progress record for a session, or nil when
// the session is uninitialized.
func (s *SQLiteStore) GetStageProgress(sessionID string) (*models.StageProgress, error) {
	row := s.db.QueryRow(
		`SELECT session_id, current_stage, total_messages, stage_messages, completed_stages, metadata, updated_at
		 FROM stage_progress WHERE session_id = ?`,
		sessionID,
	)
	var progress models.StageProgress
	var completed, metadata sql.NullString
	err := row.Scan(&progress.SessionID, &progress.CurrentStage, &progress.TotalMessages,
		&progress.StageMessages, &completed, &metadata, &progress.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetStageProgress not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetStageProgress failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query stage progress for %s: %w", sessionID, err)
	}
	if err := fromJSON(completed, &progress.CompletedStages); err != nil {
		return nil, err
	}
	if err := fromJSON(metadata, &progress.Metadata); err != nil {
		return nil, err
	}
	return &progress, nil
}

// SaveStageProgress stores or replaces the progress record for a session.
func (s *SQLiteStore) SaveStageProgress(progress models.StageProgress) error {
	completed, err := toJSON(progress.CompletedStages)
	if err != nil {
		return err
	}
	metadata, err := toJSON(progress.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO stage_progress (session_id, current_stage, total_messages, stage_messages, completed_stages, metadata, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   current_stage = excluded.current_stage,
		   total_messages = excluded.total_messages,
		   stage_messages = excluded.stage_messages,
		   completed_stages = excluded.completed_stages,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		progress.SessionID, progress.CurrentStage, progress.TotalMessages, progress.StageMessages,
		completed, metadata, progress.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveStageProgress failed", "error", err, "sessionID", progress.SessionID)
		return fmt.Errorf("failed to save stage progress for %s: %w", progress.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveStageProgress succeeded", "sessionID", progress.SessionID, "stage", progress.CurrentStage)
	return nil
}

// AppendTurn adds a conversation turn.
func (s *SQLiteStore) AppendTurn(turn models.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO conversation_turns (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.Role, turn.Content, turn.Timestamp,
	)
	if err != nil {
		slog.Error("SQLiteStore AppendTurn failed", "error", err, "sessionID", turn.SessionID)
		return fmt.Errorf("failed to insert turn for %s: %w", turn.SessionID, err)
	}
	return nil
}

// GetRecentTurns returns up to limit most recent turns in chronological order.
func (s *SQLiteStore) GetRecentTurns(sessionID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at FROM conversation_turns
		 WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		slog.Error("SQLiteStore GetRecentTurns query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			slog.Error("SQLiteStore GetRecentTurns scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}

	// Rows arrive newest-first; reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AddRiskLog appends a risk log entry.
func (s *SQLiteStore) AddRiskLog(entry models.RiskLogEntry) error {
	categories, err := toJSON(entry.Categories)
	if err != nil {
		return err
	}
	concerns, err := toJSON(entry.Concerns)
	if err != nil {
		return err
	}
	recommendations, err := toJSON(entry.Recommendations)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO risk_logs (id, session_id, user_id, message, level, categories, concerns, recommendations, confidence, action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.UserID, entry.Message, entry.Level,
		categories, concerns, recommendations, entry.Confidence, entry.Action, entry.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddRiskLog failed", "error", err, "sessionID", entry.SessionID)
		return fmt.Errorf("failed to insert risk log for %s: %w", entry.SessionID, err)
	}
	slog.Debug("SQLiteStore AddRiskLog succeeded", "sessionID", entry.SessionID, "level", entry.Level, "action", entry.Action)
	return nil
}

// GetRiskLogs returns the risk log entries for a session, oldest first.
func (s *SQLiteStore) GetRiskLogs(sessionID string) ([]models.RiskLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, user_id, message, level, categories, concerns, recommendations, confidence, action, created_at
		 FROM risk_logs WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetRiskLogs query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query risk logs for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var entries []models.RiskLogEntry
	for rows.Next() {
		entry, err := scanRiskLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk log rows: %w", err)
	}
	return entries, nil
}

// scanRiskLog scans one risk log row.
func scanRiskLog(rows *sql.Rows) (models.RiskLogEntry, error) {
	var entry models.RiskLogEntry
	var categories, concerns, recommendations sql.NullString
	err := rows.Scan(&entry.ID, &entry.SessionID, &entry.UserID, &entry.Message, &entry.Level,
		&categories, &concerns, &recommendations, &entry.Confidence, &entry.Action, &entry.CreatedAt)
	if err != nil {
		return entry, fmt.Errorf("failed to scan risk log row: %w", err)
	}
	if err := fromJSON(categories, &entry.Categories); err != nil {
		return entry, err
	}
	if err := fromJSON(concerns, &entry.Concerns); err != nil {
		return entry, err
	}
	if err := fromJSON(recommendations, &entry.Recommendations); err != nil {
		return entry, err
	}
	return entry, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
