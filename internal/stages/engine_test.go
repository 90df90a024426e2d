package stages

import (
	"errors"
	"testing"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine(NewCatalog())
}

func turnsFromTexts(texts ...string) []models.ConversationTurn {
	turns := make([]models.ConversationTurn, 0, len(texts))
	for i, text := range texts {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		turns = append(turns, models.ConversationTurn{SessionID: "s1", Role: role, Content: text})
	}
	return turns
}

func TestAssessProgressEarlyStage(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.StageMessages = 2

	assessment, err := e.AssessProgress(progress, turnsFromTexts("hi", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.CanAdvance {
		t.Error("should not be able to advance with 2 messages and no topical coverage")
	}
	if len(assessment.MissingCriteria) != 2 {
		t.Errorf("expected 2 missing criteria, got %d: %v", len(assessment.MissingCriteria), assessment.MissingCriteria)
	}
	if assessment.CompletionRate != 0 {
		t.Errorf("expected completion rate 0, got %f", assessment.CompletionRate)
	}
	if len(assessment.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
}

func TestAssessProgressReadyToAdvance(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.StageMessages = 6

	history := turnsFromTexts(
		"I feel comfortable sharing my feelings with you",
		"Thank you for trusting me with that.",
		"I trust you to help and support me through this",
	)
	assessment, err := e.AssessProgress(progress, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !assessment.CanAdvance {
		t.Errorf("expected CanAdvance, missing: %v", assessment.MissingCriteria)
	}
	if assessment.CompletionRate < 1 {
		t.Errorf("expected completion rate 1, got %f", assessment.CompletionRate)
	}
	if assessment.NextStage == nil || *assessment.NextStage != models.StageExploration {
		t.Errorf("expected next stage %s, got %v", models.StageExploration, assessment.NextStage)
	}
}

func TestAssessProgressVolumeWithoutCoverage(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.StageMessages = 10

	assessment, err := e.AssessProgress(progress, turnsFromTexts("the weather is nice", "indeed"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.CanAdvance {
		t.Error("volume alone should not satisfy the advance gate")
	}
	if assessment.CompletionRate != 0.5 {
		t.Errorf("expected completion rate 0.5, got %f", assessment.CompletionRate)
	}
	if len(assessment.MissingCriteria) != 1 {
		t.Errorf("expected 1 missing criterion, got %v", assessment.MissingCriteria)
	}
}

func TestAssessProgressTerminalStageNeverAdvances(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.CurrentStage = models.StageConsolidation
	progress.StageMessages = 50

	history := turnsFromTexts(
		"I have learned so much and made real progress, I feel better and more confident",
		"That is wonderful to hear.",
		"I will continue what worked, thank you, I am looking forward to what comes next",
	)
	assessment, err := e.AssessProgress(progress, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.CanAdvance {
		t.Error("terminal stage must never report CanAdvance")
	}
	if assessment.NextStage != nil {
		t.Errorf("terminal stage should have nil next stage, got %s", *assessment.NextStage)
	}
}

func TestAssessProgressDoesNotMutate(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.StageMessages = 3
	before := *progress

	if _, err := e.AssessProgress(progress, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress.CurrentStage != before.CurrentStage || progress.StageMessages != before.StageMessages {
		t.Error("AssessProgress must not mutate the progress record")
	}
}

func TestAssessProgressUnknownStage(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.CurrentStage = "stage-99"

	_, err := e.AssessProgress(progress, nil)
	if !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}

func TestAdvance(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.StageMessages = 7
	progress.TotalMessages = 7
	progress.Metadata.CanAdvance = true

	next, err := e.Advance(progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || *next != models.StageExploration {
		t.Fatalf("expected transition to %s, got %v", models.StageExploration, next)
	}
	if progress.CurrentStage != models.StageExploration {
		t.Errorf("expected current stage %s, got %s", models.StageExploration, progress.CurrentStage)
	}
	if progress.StageMessages != 0 {
		t.Errorf("expected stage message count reset, got %d", progress.StageMessages)
	}
	if progress.TotalMessages != 7 {
		t.Errorf("total message count should survive the transition, got %d", progress.TotalMessages)
	}
	if !progress.HasCompleted(models.StageRapport) {
		t.Error("expected stage-1 marked completed")
	}
	if progress.Metadata.CanAdvance {
		t.Error("CanAdvance should reset after the transition")
	}
	if progress.Metadata.AdvancedAt.IsZero() {
		t.Error("expected AdvancedAt to be set")
	}
}

func TestAdvanceWalksTheFullChain(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")

	want := []models.StageID{
		models.StageExploration,
		models.StageAnalysis,
		models.StagePlanning,
		models.StageConsolidation,
	}
	for _, expected := range want {
		next, err := e.Advance(progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next == nil || *next != expected {
			t.Fatalf("expected transition to %s, got %v", expected, next)
		}
	}
	if len(progress.CompletedStages) != 4 {
		t.Errorf("expected 4 completed stages, got %v", progress.CompletedStages)
	}
}

func TestAdvanceTerminalStageIsNoOp(t *testing.T) {
	e := newTestEngine()
	progress := models.NewStageProgress("s1")
	progress.CurrentStage = models.StageConsolidation
	progress.StageMessages = 9
	before := len(progress.CompletedStages)

	next, err := e.Advance(progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Errorf("expected nil transition at terminal stage, got %s", *next)
	}
	if progress.CurrentStage != models.StageConsolidation {
		t.Errorf("terminal stage must not move, got %s", progress.CurrentStage)
	}
	if progress.StageMessages != 9 {
		t.Error("terminal advance must not touch counters")
	}
	if len(progress.CompletedStages) != before {
		t.Error("terminal advance must not grow the completed set")
	}
}

func TestKeywordCoverage(t *testing.T) {
	group := []string{"alpha", "beta", "gamma", "delta"}
	history := turnsFromTexts("Alpha and BETA showed up", "but nothing else did")
	if got := keywordCoverage(group, history); got != 0.5 {
		t.Errorf("expected coverage 0.5, got %f", got)
	}
	if got := keywordCoverage(nil, history); got != 1 {
		t.Errorf("empty group should count as covered, got %f", got)
	}
	if got := keywordCoverage(group, nil); got != 0 {
		t.Errorf("empty history should give zero coverage, got %f", got)
	}
}
