package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

// BuildSystemPrompt composes the system instruction block for one turn from
// the current stage definition, optional visitor background, and the risk
// verdict level. Pure; rebuilt every turn and never persisted.
func BuildSystemPrompt(def models.StageDefinition, profile *models.UserProfile, issueTags []string, level models.RiskLevel) string {
	var b strings.Builder

	b.WriteString("You are an AI counselor guiding a visitor through a structured five-stage counseling conversation.\n\n")

	b.WriteString(fmt.Sprintf("CURRENT STAGE: %s\n", def.Name))
	b.WriteString(fmt.Sprintf("Stage objectives: %s\n", def.Objectives))
	if len(def.KeyQuestions) > 0 {
		b.WriteString("Guiding questions you may draw on:\n")
		for _, q := range def.KeyQuestions {
			b.WriteString("- " + q + "\n")
		}
	}

	if profile != nil {
		b.WriteString("\nVISITOR BACKGROUND:\n")
		if profile.Age > 0 {
			b.WriteString(fmt.Sprintf("- Age: %d\n", profile.Age))
		}
		if profile.Gender != "" {
			b.WriteString("- Gender: " + profile.Gender + "\n")
		}
		if profile.Occupation != "" {
			b.WriteString("- Occupation: " + profile.Occupation + "\n")
		}
		if profile.PriorSessions > 0 {
			b.WriteString(fmt.Sprintf("- Prior sessions: %d\n", profile.PriorSessions))
		}
	}

	if len(issueTags) > 0 {
		b.WriteString("\nCurrent issues the visitor wants to work on: " + strings.Join(issueTags, ", ") + "\n")
	}

	if level != models.RiskLevelLow {
		b.WriteString(fmt.Sprintf("\nSAFETY NOTICE: elevated risk (%s) was detected in this conversation. ", level))
		b.WriteString("Respond with extra care, acknowledge the visitor's distress directly, and encourage professional support where appropriate.\n")
	}

	b.WriteString("\nBEHAVIORAL GUIDELINES:\n")
	b.WriteString("- Respond with warmth and empathy; reflect the visitor's feelings before guiding.\n")
	b.WriteString("- Use person-centered and CBT-informed techniques appropriate to the current stage.\n")
	b.WriteString("- Keep replies focused and under 500 characters.\n")
	b.WriteString("- Ask at most one question per reply.\n")
	b.WriteString("- Never give a medical or psychiatric diagnosis; you are a supportive counselor, not a clinician.\n")

	return b.String()
}
