package orchestrator

import (
	"regexp"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

// Reply shaping limits.
const (
	maxReplyChars  = 500 // hard truncation point, in characters
	nudgeThreshold = 400 // replies shorter than this get a closing nudge
)

// replacementRules are applied in order to every model reply. They rewrite
// self-referential model phrasing and soften diagnostic-sounding language.
// Order matters: specific phrases run before their generic fallbacks.
var replacementRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bI(?:'m| am)(?: just)? an? (?:AI|artificial intelligence)(?: language| large language)? model\b`), "I am your AI counselor"},
	{regexp.MustCompile(`(?i)\bas an? (?:AI|artificial intelligence)(?: language| large language)? model\b`), "as your AI counselor"},
	{regexp.MustCompile(`(?i)\byou (?:have|suffer from) depression\b`), "you may be experiencing a depressed mood"},
	{regexp.MustCompile(`(?i)\byou (?:have|suffer from) (?:an )?anxiety disorder\b`), "you may be experiencing anxious feelings"},
	{regexp.MustCompile(`(?i)\bI diagnose\b`), "I notice"},
	{regexp.MustCompile(`(?i)\bdiagnosis\b`), "impression"},
	{regexp.MustCompile(`(?i)\bmental illness\b`), "emotional difficulties"},
	{regexp.MustCompile(`(?i)\bdisorder\b`), "difficulty"},
}

// closingNudges are short stage-appropriate invitations appended to replies
// that come back shorter than the nudge threshold.
func closingNudge(id models.StageID) string {
	switch id {
	case models.StageRapport:
		return "Feel free to share whatever is on your mind; there is no rush."
	case models.StageExploration:
		return "Could you tell me a little more about how this shows up in your daily life?"
	case models.StageAnalysis:
		return "What do you notice going through your mind in those moments?"
	case models.StagePlanning:
		return "What small step feels doable for you this week?"
	case models.StageConsolidation:
		return "What would you like to carry forward from what we have talked about?"
	default:
		return "I'm here with you; take your time."
	}
}

// PostProcess applies the ordered replacement rules, hard-truncates the text
// to the reply limit, and appends a stage-appropriate closing nudge to short
// replies. Pure function so the rewrite rules are independently testable.
func PostProcess(text string, stage models.StageID) string {
	for _, rule := range replacementRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}

	runes := []rune(text)
	if len(runes) > maxReplyChars {
		text = string(runes[:maxReplyChars]) + "..."
		runes = []rune(text)
	}

	if len(runes) < nudgeThreshold {
		text += "\n\n" + closingNudge(stage)
	}
	return text
}
