// Package stages implements the five-stage counseling protocol: the static
// stage catalog and the progression engine that decides when a session may
// advance.
package stages

import (
	"errors"
	"fmt"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

// ErrUnknownStage indicates a stage id outside the fixed five. Given the
// compiled-in catalog this is a programmer error, not a runtime condition.
var ErrUnknownStage = errors.New("unknown stage")

func nextOf(id models.StageID) *models.StageID {
	return &id
}

// definitions is the compiled-in protocol table. Stages form a single linear
// chain; exactly one stage (consolidation) has no successor.
var definitions = [...]models.StageDefinition{
	{
		ID:         models.StageRapport,
		Name:       "Rapport Building",
		Objectives: "Establish trust and a safe space; understand why the visitor is here today.",
		KeyQuestions: []string{
			"What brings you here today?",
			"How have you been feeling lately?",
			"Have you talked to anyone else about this?",
		},
		KeywordGroup: []string{
			"feel", "feeling", "trust", "comfortable", "share", "help", "support",
		},
		MinMessages: 6,
		CompletionCriteria: []string{
			"enough conversational exchange to build initial trust",
			"visitor has started sharing feelings and their reason for coming",
		},
		NextStage: nextOf(models.StageExploration),
	},
	{
		ID:         models.StageExploration,
		Name:       "Problem Exploration",
		Objectives: "Map the presenting problem: when it started, how often it occurs, and how it affects daily life.",
		KeyQuestions: []string{
			"When did you first notice this problem?",
			"How does it affect your daily life?",
			"When is it at its worst?",
		},
		KeywordGroup: []string{
			"problem", "situation", "happened", "difficult", "stress", "work", "family", "relationship",
		},
		MinMessages: 8,
		CompletionCriteria: []string{
			"enough conversational exchange to map the problem",
			"core aspects of the presenting problem discussed in depth",
		},
		NextStage: nextOf(models.StageAnalysis),
	},
	{
		ID:         models.StageAnalysis,
		Name:       "Pattern Analysis",
		Objectives: "Connect thoughts, feelings, and behaviors; identify recurring patterns and underlying beliefs.",
		KeyQuestions: []string{
			"What goes through your mind when that happens?",
			"Do you notice a pattern in these situations?",
			"What do you believe that says about you?",
		},
		KeywordGroup: []string{
			"think", "thought", "pattern", "always", "because", "believe", "myself", "realize",
		},
		MinMessages: 6,
		CompletionCriteria: []string{
			"enough conversational exchange to analyze patterns",
			"visitor has reflected on thoughts and recurring patterns",
		},
		NextStage: nextOf(models.StagePlanning),
	},
	{
		ID:         models.StagePlanning,
		Name:       "Solution Planning",
		Objectives: "Develop concrete, achievable coping strategies and next steps the visitor owns.",
		KeyQuestions: []string{
			"What has helped, even a little, in the past?",
			"What small step could you try this week?",
			"What might get in the way of that plan?",
		},
		KeywordGroup: []string{
			"try", "plan", "change", "goal", "step", "practice", "could", "want",
		},
		MinMessages: 8,
		CompletionCriteria: []string{
			"enough conversational exchange to form a plan",
			"concrete strategies and next steps discussed",
		},
		NextStage: nextOf(models.StageConsolidation),
	},
	{
		ID:         models.StageConsolidation,
		Name:       "Consolidation",
		Objectives: "Review progress, reinforce gains, and prepare the visitor to continue independently.",
		KeyQuestions: []string{
			"What will you take away from our conversations?",
			"How will you keep practicing what worked?",
			"How do you feel compared to when we started?",
		},
		KeywordGroup: []string{
			"learned", "progress", "better", "confident", "continue", "thank", "forward",
		},
		MinMessages: 4,
		CompletionCriteria: []string{
			"enough conversational exchange to consolidate gains",
			"visitor has reviewed progress and takeaways",
		},
		NextStage: nil, // terminal
	},
}

// Catalog provides read-only access to the protocol stage definitions.
// It is safe for concurrent use by construction.
type Catalog struct{}

// NewCatalog returns the stage catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// GetStage looks up a stage definition by id.
func (c *Catalog) GetStage(id models.StageID) (models.StageDefinition, error) {
	for _, def := range definitions {
		if def.ID == id {
			return def, nil
		}
	}
	return models.StageDefinition{}, fmt.Errorf("%w: %s", ErrUnknownStage, id)
}

// AllStages returns the stage definitions in protocol order.
func (c *Catalog) AllStages() []models.StageDefinition {
	out := make([]models.StageDefinition, len(definitions))
	copy(out[:], definitions[:])
	return out
}
