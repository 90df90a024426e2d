// Package conversation implements the session-facing service around the
// orchestrator: per-session serialization, the read-assess-write persistence
// cycle, and risk-log bookkeeping.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/orchestrator"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/store"
	"github.com/google/uuid"
)

// historyWindow is how many recent turns are loaded per turn for stage
// assessment and risk-history scoring.
const historyWindow = 20

// ErrSessionNotFound indicates a turn arrived for a session that was never
// started.
var ErrSessionNotFound = fmt.Errorf("session not found")

// TurnResult is what the service returns to its caller for one handled turn.
type TurnResult struct {
	Reply           string
	Risk            models.RiskVerdict
	Usage           models.TokenUsage
	StageTransition *orchestrator.StageTransition
}

// Service coordinates one counseling conversation turn end to end. A keyed
// mutex guarantees at-most-one in-flight turn per session; different sessions
// proceed concurrently.
type Service struct {
	store store.Store
	orch  *orchestrator.Orchestrator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a conversation service.
func NewService(st store.Store, orch *orchestrator.Orchestrator) *Service {
	return &Service{
		store: st,
		orch:  orch,
		locks: make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing turns for one session.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// StartSession creates a new session with an optional profile and issue tags,
// plus its default stage-one progress record.
func (s *Service) StartSession(userID string, issueTags []string, profile *models.UserProfile) (*models.Session, error) {
	now := time.Now()
	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssueTags: issueTags,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(session); err != nil {
		slog.Error("Service.StartSession: failed to create session", "error", err, "userID", userID)
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := s.store.SaveStageProgress(*models.NewStageProgress(session.ID)); err != nil {
		slog.Error("Service.StartSession: failed to initialize progress", "error", err, "sessionID", session.ID)
		return nil, fmt.Errorf("start session: %w", err)
	}
	slog.Info("Service.StartSession: session started", "sessionID", session.ID, "userID", userID)
	return &session, nil
}

// HandleMessage processes one inbound user message: loads the session
// snapshot, runs the orchestrator, and persists the user turn, the reply
// turn, the progress replacement, and any advisory risk log entry.
func (s *Service) HandleMessage(ctx context.Context, sessionID, userMessage string) (*TurnResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(sessionID)
	if err != nil {
		slog.Error("Service.HandleMessage: failed to load session", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("handle message: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("handle message: %w: %s", ErrSessionNotFound, sessionID)
	}

	progress, err := s.store.GetStageProgress(sessionID)
	if err != nil {
		slog.Error("Service.HandleMessage: failed to load progress", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("handle message: %w", err)
	}
	if progress == nil {
		// Uninitialized session: create the stage-one default before use.
		progress = models.NewStageProgress(sessionID)
		slog.Debug("Service.HandleMessage: initialized default progress", "sessionID", sessionID)
	}

	history, err := s.store.GetRecentTurns(sessionID, historyWindow)
	if err != nil {
		slog.Error("Service.HandleMessage: failed to load history", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("handle message: %w", err)
	}

	result, err := s.orch.GenerateReply(ctx, session, progress, history, userMessage)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userTurn := models.ConversationTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   userMessage,
		Timestamp: now,
	}
	if err := s.store.AppendTurn(userTurn); err != nil {
		slog.Error("Service.HandleMessage: failed to persist user turn", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("handle message: %w", err)
	}

	replyTurn := models.ConversationTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   result.Reply,
		Timestamp: now.Add(time.Millisecond),
	}
	if err := s.store.AppendTurn(replyTurn); err != nil {
		slog.Error("Service.HandleMessage: failed to persist reply turn", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("handle message: %w", err)
	}

	if err := s.store.SaveStageProgress(*result.Progress); err != nil {
		slog.Error("Service.HandleMessage: failed to persist progress", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("handle message: %w", err)
	}

	if result.LogRisk {
		entry := models.RiskLogEntry{
			ID:              uuid.NewString(),
			SessionID:       sessionID,
			UserID:          session.UserID,
			Message:         userMessage,
			Level:           result.Risk.Level,
			Categories:      result.Risk.Categories,
			Concerns:        result.Risk.Concerns,
			Recommendations: result.Risk.Recommendations,
			Confidence:      result.Risk.Confidence,
			Action:          actionFor(result.Risk),
			CreatedAt:       now,
		}
		if err := s.store.AddRiskLog(entry); err != nil {
			// A lost risk log should not fail the visitor-facing turn.
			slog.Error("Service.HandleMessage: failed to persist risk log", "error", err, "sessionID", sessionID, "level", entry.Level)
		}
	}

	slog.Info("Service.HandleMessage: turn handled",
		"sessionID", sessionID,
		"stage", result.Progress.CurrentStage,
		"riskLevel", result.Risk.Level,
		"advanced", result.StageTransition != nil)
	return &TurnResult{
		Reply:           result.Reply,
		Risk:            result.Risk,
		Usage:           result.Usage,
		StageTransition: result.StageTransition,
	}, nil
}

// actionFor classifies what was done about a verdict for the risk log.
func actionFor(v models.RiskVerdict) models.RiskAction {
	switch {
	case v.Block:
		return models.RiskActionBlocked
	case v.Escalate:
		return models.RiskActionAlerted
	default:
		return models.RiskActionMonitored
	}
}
