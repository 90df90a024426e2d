package orchestrator

import "github.com/ChineseManHuang/YIXIN-sub000/internal/models"

// StageFallback returns the built-in canned reply for a stage, used when the
// model call fails. The generic default covers unexpected stage ids.
func StageFallback(id models.StageID) string {
	switch id {
	case models.StageRapport:
		return "Thank you for being here. I'd like to understand what brought you in today. Please share whatever feels comfortable."
	case models.StageExploration:
		return "I hear that this has been weighing on you. Could you tell me more about when this started and how it affects your days?"
	case models.StageAnalysis:
		return "It sounds like there may be a pattern here worth looking at together. What usually goes through your mind when this happens?"
	case models.StagePlanning:
		return "Let's think about what might help. Is there one small, concrete step you could imagine trying this week?"
	case models.StageConsolidation:
		return "You've put real work into these conversations. What feels most important to take with you going forward?"
	default:
		return "I'm here with you. Please tell me more about what's on your mind."
	}
}

// SafetyReply returns the canned safety message used when generation is
// blocked. Critical verdicts get the emergency-resources tier; anything else
// gets the general professional-help tier.
func SafetyReply(verdict models.RiskVerdict) string {
	if verdict.Level == models.RiskLevelCritical {
		return "I'm really concerned about your safety right now, and I want you to get support from a person who can help immediately.\n\n" +
			"Please reach out now:\n" +
			"- Call or text 988 (Suicide & Crisis Lifeline, 24/7)\n" +
			"- Text HOME to 741741 (Crisis Text Line)\n" +
			"- Call your local emergency number (911) if you are in immediate danger\n\n" +
			"You don't have to face this alone. These services are free, confidential, and available right now."
	}
	return "What you're describing sounds serious, and you deserve more support than I can offer here. " +
		"Please consider reaching out to a mental health professional or a trusted person in your life. " +
		"If things ever feel unsafe, contact your local crisis line right away."
}
