// Package orchestrator coordinates one counseling turn: safety screening,
// stage assessment, model-backed reply generation with canned fallbacks, and
// the stage-advance decision.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/risk"
	"github.com/ChineseManHuang/YIXIN-sub000/internal/stages"
)

// promptHistoryWindow is how many recent turns are sent to the model.
const promptHistoryWindow = 10

// ModelClient is the external language-model backend.
type ModelClient interface {
	Complete(ctx context.Context, systemPrompt string, turns []models.ConversationTurn) (*models.ModelReply, error)
}

// RiskAnalyzer screens a message for safety risk. Implementations must not
// return errors; failures degrade to a safe low verdict internally.
type RiskAnalyzer interface {
	Analyze(message string, history []models.ConversationTurn, rctx risk.Context) models.RiskVerdict
}

// StageTransition reports an advance applied during a turn.
type StageTransition struct {
	From models.StageID `json:"from"`
	To   models.StageID `json:"to"`
}

// Result is the outcome of one GenerateReply call. Progress is the
// replacement record the caller should persist; the input progress is never
// mutated.
type Result struct {
	Reply           string
	Risk            models.RiskVerdict
	Usage           models.TokenUsage
	Progress        *models.StageProgress
	Assessment      *stages.Assessment
	StageTransition *StageTransition
	LogRisk         bool // advisory: persist a risk log entry for this turn
}

// OrchestrationError wraps an unexpected failure during turn assembly. Model
// and risk-analysis failures never surface as this; they are recovered
// locally.
type OrchestrationError struct {
	Op  string
	Err error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration failed during %s: %v", e.Op, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// Orchestrator ties the risk analyzer, stage engine, and model client
// together. It is stateless and safe for concurrent use across sessions;
// per-session serialization is the caller's responsibility.
type Orchestrator struct {
	catalog  *stages.Catalog
	engine   *stages.Engine
	analyzer RiskAnalyzer
	model    ModelClient
}

// NewOrchestrator creates an orchestrator with injected dependencies.
func NewOrchestrator(catalog *stages.Catalog, engine *stages.Engine, analyzer RiskAnalyzer, model ModelClient) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		engine:   engine,
		analyzer: analyzer,
		model:    model,
	}
}

// GenerateReply processes one inbound user message for a session. The
// progress argument is treated as an immutable snapshot; the returned
// Result.Progress carries the replacement record.
//
// Safety gate first: a blocking verdict short-circuits with a canned safety
// reply and zero model usage. Model failures degrade to per-stage canned
// fallbacks and never surface as errors.
func (o *Orchestrator) GenerateReply(ctx context.Context, session *models.Session, progress *models.StageProgress, history []models.ConversationTurn, userMessage string) (*Result, error) {
	slog.Debug("Orchestrator.GenerateReply: processing turn", "sessionID", session.ID, "stage", progress.CurrentStage, "messageLength", len(userMessage))

	verdict := o.analyzer.Analyze(userMessage, history, risk.Context{
		SessionID: session.ID,
		Profile:   session.Profile,
	})

	now := time.Now()
	updated := progress.Clone()
	updated.TotalMessages++
	updated.StageMessages++
	updated.UpdatedAt = now

	if verdict.Block {
		slog.Warn("Orchestrator.GenerateReply: blocking verdict, short-circuiting model call",
			"sessionID", session.ID, "level", verdict.Level, "categories", len(verdict.Categories))
		return &Result{
			Reply:    SafetyReply(verdict),
			Risk:     verdict,
			Progress: updated,
			LogRisk:  true,
		}, nil
	}

	// Assessment runs against the progress-to-date, before this turn's
	// counts are applied.
	assessment, err := o.engine.AssessProgress(progress, history)
	if err != nil {
		return nil, &OrchestrationError{Op: "stage assessment", Err: err}
	}

	def, err := o.catalog.GetStage(progress.CurrentStage)
	if err != nil {
		return nil, &OrchestrationError{Op: "stage lookup", Err: err}
	}

	systemPrompt := BuildSystemPrompt(def, session.Profile, session.IssueTags, verdict.Level)
	turns := promptTurns(history, userMessage)

	var replyText string
	var usage models.TokenUsage
	reply, err := o.model.Complete(ctx, systemPrompt, turns)
	if err != nil {
		// Model failure is recovered here, never surfaced to the caller.
		slog.Warn("Orchestrator.GenerateReply: model call failed, using canned fallback", "error", err, "sessionID", session.ID, "stage", def.ID)
		replyText = StageFallback(def.ID)
	} else {
		replyText = PostProcess(reply.Text, def.ID)
		usage = reply.Usage
	}

	updated.Metadata = models.ProgressMetadata{
		CompletionRate: assessment.CompletionRate,
		CanAdvance:     assessment.CanAdvance,
		AssessedAt:     now,
		AdvancedAt:     updated.Metadata.AdvancedAt,
	}

	result := &Result{
		Reply:      replyText,
		Risk:       verdict,
		Usage:      usage,
		Progress:   updated,
		Assessment: assessment,
		LogRisk:    verdict.Level != models.RiskLevelLow || len(verdict.Concerns) > 0,
	}

	// The step-2 assessment is reused for the advance decision; it is not
	// recomputed after the model call.
	if assessment.CanAdvance && assessment.NextStage != nil {
		next, err := o.engine.Advance(updated)
		if err != nil {
			return nil, &OrchestrationError{Op: "stage advance", Err: err}
		}
		if next != nil {
			result.StageTransition = &StageTransition{From: assessment.CurrentStage, To: *next}
		}
	}

	slog.Info("Orchestrator.GenerateReply: turn completed",
		"sessionID", session.ID,
		"stage", updated.CurrentStage,
		"riskLevel", verdict.Level,
		"advanced", result.StageTransition != nil,
		"totalTokens", usage.TotalTokens)
	return result, nil
}

// promptTurns assembles the model call's ordered input: the most recent
// history window plus the new user message.
func promptTurns(history []models.ConversationTurn, userMessage string) []models.ConversationTurn {
	window := history
	if len(window) > promptHistoryWindow {
		window = window[len(window)-promptHistoryWindow:]
	}
	turns := make([]models.ConversationTurn, 0, len(window)+1)
	turns = append(turns, window...)
	turns = append(turns, models.ConversationTurn{
		Role:      models.RoleUser,
		Content:   userMessage,
		Timestamp: time.Now(),
	})
	return turns
}
