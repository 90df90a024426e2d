package stages

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

// Progression thresholds. The coverage ratio and advance gate come from the
// original protocol tuning; they are deliberately package constants rather
// than per-stage values.
const (
	// coverageThreshold is the fraction of a stage's keyword group that must
	// appear in the conversation before the topical criterion counts as met.
	coverageThreshold = 0.6
	// advanceThreshold is the minimum completion rate required to advance.
	advanceThreshold = 0.8
)

// Assessment is the outcome of evaluating a session's progress within its
// current stage.
type Assessment struct {
	CurrentStage    models.StageID
	CanAdvance      bool
	CompletionRate  float64 // in [0,1]
	MissingCriteria []string
	Recommendations []string
	NextStage       *models.StageID // nil on the terminal stage
}

// Engine decides completion rate and advancement for stage progress records.
// It is stateless; progress and history are passed in and returned, never
// cached.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates a stage progression engine backed by the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// AssessProgress evaluates the current stage's completion criteria against
// the progress record and recent conversation history. It is a pure function
// of its inputs and never mutates progress.
func (e *Engine) AssessProgress(progress *models.StageProgress, history []models.ConversationTurn) (*Assessment, error) {
	def, err := e.catalog.GetStage(progress.CurrentStage)
	if err != nil {
		slog.Error("Engine.AssessProgress: stage lookup failed", "error", err, "sessionID", progress.SessionID, "stage", progress.CurrentStage)
		return nil, fmt.Errorf("assess progress: %w", err)
	}

	var missing []string
	satisfied := 0

	// Criterion A: message volume within the stage.
	if progress.StageMessages < def.MinMessages {
		missing = append(missing, fmt.Sprintf("need at least %d messages in this stage (currently %d)", def.MinMessages, progress.StageMessages))
	} else {
		satisfied++
	}

	// Criterion B: topical coverage of the stage's keyword group.
	ratio := keywordCoverage(def.KeywordGroup, history)
	if ratio < coverageThreshold {
		missing = append(missing, "core topics of this stage need deeper discussion")
	} else {
		satisfied++
	}

	criteriaCount := len(def.CompletionCriteria)
	if criteriaCount < 1 {
		criteriaCount = 1
	}
	rate := float64(satisfied) / float64(criteriaCount)
	if rate > 1 {
		rate = 1
	}

	// The terminal stage has no successor and can never advance, regardless
	// of scores.
	canAdvance := len(missing) == 0 && rate >= advanceThreshold && def.NextStage != nil

	assessment := &Assessment{
		CurrentStage:    def.ID,
		CanAdvance:      canAdvance,
		CompletionRate:  rate,
		MissingCriteria: missing,
		Recommendations: buildRecommendations(rate, missing),
		NextStage:       def.NextStage,
	}

	slog.Debug("Engine.AssessProgress: assessed stage",
		"sessionID", progress.SessionID,
		"stage", def.ID,
		"completionRate", rate,
		"coverageRatio", ratio,
		"canAdvance", canAdvance,
		"missing", len(missing))
	return assessment, nil
}

// Advance applies the stage transition: marks the current stage completed,
// moves to the successor, and resets the per-stage message count. It is the
// only mutator of StageProgress.CurrentStage. Returns nil without mutating
// when the current stage has no successor.
func (e *Engine) Advance(progress *models.StageProgress) (*models.StageID, error) {
	def, err := e.catalog.GetStage(progress.CurrentStage)
	if err != nil {
		slog.Error("Engine.Advance: stage lookup failed", "error", err, "sessionID", progress.SessionID, "stage", progress.CurrentStage)
		return nil, fmt.Errorf("advance: %w", err)
	}

	if def.NextStage == nil {
		slog.Debug("Engine.Advance: terminal stage, no transition", "sessionID", progress.SessionID, "stage", def.ID)
		return nil, nil
	}

	now := time.Now()
	progress.MarkCompleted(def.ID)
	progress.CurrentStage = *def.NextStage
	progress.StageMessages = 0
	progress.Metadata.CanAdvance = false
	progress.Metadata.AdvancedAt = now
	progress.UpdatedAt = now

	slog.Info("Engine.Advance: stage transition", "sessionID", progress.SessionID, "from", def.ID, "to", *def.NextStage)
	next := *def.NextStage
	return &next, nil
}

// keywordCoverage computes the fraction of the keyword group found in the
// concatenated, lowercased history text.
func keywordCoverage(group []string, history []models.ConversationTurn) float64 {
	if len(group) == 0 {
		return 1
	}

	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Content)
		b.WriteString(" ")
	}
	text := strings.ToLower(b.String())

	found := 0
	for _, term := range group {
		if strings.Contains(text, strings.ToLower(term)) {
			found++
		}
	}
	return float64(found) / float64(len(group))
}

// buildRecommendations selects guidance text by completion-rate bucket, plus
// one line per missing criterion.
func buildRecommendations(rate float64, missing []string) []string {
	var recs []string
	switch {
	case rate < 0.3:
		recs = append(recs, "This stage has just begun; keep the conversation open and unhurried.")
	case rate < 0.6:
		recs = append(recs, "Good progress; gently steer the conversation toward this stage's core topics.")
	case rate < advanceThreshold:
		recs = append(recs, "Almost there; address the remaining criteria before moving on.")
	default:
		recs = append(recs, "Stage objectives are largely met; prepare to transition when the visitor is ready.")
	}
	for _, m := range missing {
		recs = append(recs, "Still needed: "+m)
	}
	return recs
}
