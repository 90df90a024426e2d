// Package store provides storage backends for counseling sessions.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists counseling data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store from a connection URL DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// CreateSession stores a new session record.
func (s *PostgresStore) CreateSession(session models.Session) error {
	tags, err := toJSON(session.IssueTags)
	if err != nil {
		return err
	}
	profile, err := toJSON(session.Profile)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, user_id, issue_tags, profile, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, tags, profile, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session, or nil if it does not exist.
func (s *PostgresStore) GetSession(sessionID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, issue_tags, profile, created_at, updated_at FROM sessions WHERE id = $1`,
		sessionID,
	)
	var session models.Session
	var tags, profile sql.NullString
	err := row.Scan(&session.ID, &session.UserID, &tags, &profile, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
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
func (s *PostgresStore) GetStageProgress(sessionID string) (*models.StageProgress, error) {
	row := s.db.QueryRow(
		`SELECT session_id, current_stage, total_messages, stage_messages, completed_stages, metadata, updated_at
		 FROM stage_progress WHERE session_id = $1`,
		sessionID,
	)
	var progress models.StageProgress
	var completed, metadata sql.NullString
	err := row.Scan(&progress.SessionID, &progress.CurrentStage, &progress.TotalMessages,
		&progress.StageMessages, &completed, &metadata, &progress.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetStageProgress not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetStageProgress failed", "error", err, "sessionID", sessionID)
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
func (s *PostgresStore) SaveStageProgress(progress models.StageProgress) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id) DO UPDATE SET
		   current_stage = EXCLUDED.current_stage,
		   total_messages = EXCLUDED.total_messages,
		   stage_messages = EXCLUDED.stage_messages,
		   completed_stages = EXCLUDED.completed_stages,
		   metadata = EXCLUDED.metadata,
		   updated_at = EXCLUDED.updated_at`,
		progress.SessionID, progress.CurrentStage, progress.TotalMessages, progress.StageMessages,
		completed, metadata, progress.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveStageProgress failed", "error", err, "sessionID", progress.SessionID)
		return fmt.Errorf("failed to save stage progress for %s: %w", progress.SessionID, err)
	}
	return nil
}

// AppendTurn adds a conversation turn.
func (s *PostgresStore) AppendTurn(turn models.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO conversation_turns (id, session_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		turn.ID, turn.SessionID, turn.Role, turn.Content, turn.Timestamp,
	)
	if err != nil {
		slog.Error("PostgresStore AppendTurn failed", "error", err, "sessionID", turn.SessionID)
		return fmt.Errorf("failed to insert turn for %s: %w", turn.SessionID, err)
	}
	return nil
}

// GetRecentTurns returns up to limit most recent turns in chronological order.
func (s *PostgresStore) GetRecentTurns(sessionID string, limit int) ([]models.ConversationTurn, error) {
	query := `SELECT id, session_id, role, content, created_at FROM conversation_turns
		 WHERE session_id = $1 ORDER BY created_at DESC, id DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetRecentTurns query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AddRiskLog appends a risk log entry.
func (s *PostgresStore) AddRiskLog(entry models.RiskLogEntry) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.SessionID, entry.UserID, entry.Message, entry.Level,
		categories, concerns, recommendations, entry.Confidence, entry.Action, entry.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddRiskLog failed", "error", err, "sessionID", entry.SessionID)
		return fmt.Errorf("failed to insert risk log for %s: %w", entry.SessionID, err)
	}
	return nil
}

// GetRiskLogs returns the risk log entries for a session, oldest first.
func (s *PostgresStore) GetRiskLogs(sessionID string) ([]models.RiskLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, user_id, message, level, categories, concerns, recommendations, confidence, action, created_at
		 FROM risk_logs WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		slog.Error("PostgresStore GetRiskLogs query failed", "error", err, "sessionID", sessionID)
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

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
