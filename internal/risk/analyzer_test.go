package risk

import (
	"reflect"
	"testing"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

func userTurn(content string) models.ConversationTurn {
	return models.ConversationTurn{SessionID: "s1", Role: models.RoleUser, Content: content}
}

func assistantTurn(content string) models.ConversationTurn {
	return models.ConversationTurn{SessionID: "s1", Role: models.RoleAssistant, Content: content}
}

func TestAnalyzeSuicidalIdeationBlocks(t *testing.T) {
	a := NewAnalyzer()
	verdict := a.Analyze("I want to end my life", nil, Context{SessionID: "s1"})

	if verdict.Level != models.RiskLevelCritical {
		t.Errorf("expected critical level, got %s", verdict.Level)
	}
	if !verdict.Block {
		t.Error("expected blocking verdict")
	}
	if !verdict.Escalate {
		t.Error("critical verdict must escalate")
	}
	if !verdict.HasCategory(models.CategorySuicidalIdeation) {
		t.Errorf("expected suicidal_ideation category, got %v", verdict.Categories)
	}
	if len(verdict.Concerns) == 0 {
		t.Error("expected concerns")
	}
	if len(verdict.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
}

func TestAnalyzeBenignMessage(t *testing.T) {
	a := NewAnalyzer()
	verdict := a.Analyze("I had a pretty good day at work today", nil, Context{SessionID: "s1"})

	if verdict.Level != models.RiskLevelLow {
		t.Errorf("expected low level, got %s", verdict.Level)
	}
	if verdict.Block || verdict.Escalate {
		t.Error("benign message must not block or escalate")
	}
	if len(verdict.Categories) != 0 {
		t.Errorf("expected no categories, got %v", verdict.Categories)
	}
	if verdict.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", verdict.Confidence)
	}
}

func TestAnalyzeViolenceEscalatesWithoutBlocking(t *testing.T) {
	a := NewAnalyzer()
	verdict := a.Analyze("I want to make them pay, I keep thinking about revenge", nil, Context{SessionID: "s1"})

	if verdict.Level != models.RiskLevelHigh {
		t.Errorf("expected high level, got %s", verdict.Level)
	}
	if verdict.Block {
		t.Error("non-suicidal verdicts must not block")
	}
	if !verdict.Escalate {
		t.Error("high-level verdict must escalate")
	}
	if !verdict.HasCategory(models.CategoryViolenceThreat) {
		t.Errorf("expected violence_threat category, got %v", verdict.Categories)
	}
}

func TestAnalyzeHistoryContributes(t *testing.T) {
	a := NewAnalyzer()
	history := []models.ConversationTurn{
		userTurn("I feel hopeless and worthless lately"),
		assistantTurn("I hear how heavy that feels."),
	}
	verdict := a.Analyze("okay", history, Context{SessionID: "s1"})

	if verdict.Level != models.RiskLevelMedium {
		t.Errorf("expected medium level from history, got %s", verdict.Level)
	}
	if !verdict.HasCategory(models.CategorySevereDepression) {
		t.Errorf("expected severe_depression from history, got %v", verdict.Categories)
	}
	if verdict.Block || verdict.Escalate {
		t.Error("medium verdict must neither block nor escalate")
	}
}

func TestAnalyzeAssistantTurnsIgnored(t *testing.T) {
	a := NewAnalyzer()
	history := []models.ConversationTurn{
		assistantTurn("talking about suicide can be hard, kill myself, end my life"),
	}
	verdict := a.Analyze("okay", history, Context{SessionID: "s1"})

	if verdict.Level != models.RiskLevelLow {
		t.Errorf("assistant turns must not contribute, got %s", verdict.Level)
	}
}

func TestAnalyzeAmplifiersRaiseScore(t *testing.T) {
	a := NewAnalyzer()
	plain := a.Analyze("I keep thinking about suicide", nil, Context{})
	amplified := a.Analyze("I keep thinking about suicide, I have a plan for tonight with pills", nil, Context{})

	if amplified.Confidence <= plain.Confidence {
		t.Errorf("amplifiers should raise the score: plain=%f amplified=%f", plain.Confidence, amplified.Confidence)
	}
}

func TestAnalyzeConfidenceCappedAtOne(t *testing.T) {
	a := NewAnalyzer()
	message := "I want to kill myself and end my life, suicide feels like the answer, I want to die, " +
		"I would be better off dead, I will end it all tonight, I have a plan, pills and a goodbye note"
	verdict := a.Analyze(message, nil, Context{})

	if verdict.Confidence != 1 {
		t.Errorf("expected confidence capped at 1, got %f", verdict.Confidence)
	}
	if verdict.Level != models.RiskLevelCritical {
		t.Errorf("expected critical, got %s", verdict.Level)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewAnalyzer()
	message := "I feel hopeless and I keep cutting, sometimes I hear voices"
	history := []models.ConversationTurn{userTurn("panic attack at work, heart racing")}

	first := a.Analyze(message, history, Context{SessionID: "s1"})
	for i := 0; i < 10; i++ {
		again := a.Analyze(message, history, Context{SessionID: "s1"})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("verdicts differ across runs:\nfirst: %+v\nagain: %+v", first, again)
		}
	}
}

func TestAnalyzeEmptyMessage(t *testing.T) {
	a := NewAnalyzer()
	verdict := a.Analyze("   ", nil, Context{})
	if verdict.Level != models.RiskLevelLow || verdict.Block {
		t.Errorf("blank message should be low and unblocked, got %+v", verdict)
	}
}

func TestAnalyzeCustomThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MediumThreshold = 1
	a := NewAnalyzer(WithConfig(cfg))

	verdict := a.Analyze("everything is sexual around here", nil, Context{})
	if verdict.Level != models.RiskLevelMedium {
		t.Errorf("lowered threshold should yield medium, got %s", verdict.Level)
	}
}

func TestAnalyzeHistoryWindowLimited(t *testing.T) {
	a := NewAnalyzer()

	// The risky turn sits beyond the five-turn user window and must be
	// ignored.
	history := []models.ConversationTurn{userTurn("I want to end my life")}
	for i := 0; i < 5; i++ {
		history = append(history, userTurn("just a normal day"))
	}
	verdict := a.Analyze("okay", history, Context{})
	if verdict.Level != models.RiskLevelLow {
		t.Errorf("turns outside the history window must not contribute, got %s", verdict.Level)
	}
}
