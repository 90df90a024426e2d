package risk

import (
	"log/slog"
	"strings"

	"github.com/ChineseManHuang/YIXIN-sub000/internal/models"
)

// Config holds the hand-tuned scoring thresholds. The 15/30/50 cut points
// carry over from the original protocol; their clinical validity is
// unverified, which is why they live in configuration rather than as
// literals in the scoring code.
type Config struct {
	MediumThreshold   float64
	HighThreshold     float64
	CriticalThreshold float64
	HistoryWeight     float64 // contribution factor for prior user turns
	HistoryTurns      int     // how many recent user turns to rescan
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MediumThreshold:   15,
		HighThreshold:     30,
		CriticalThreshold: 50,
		HistoryWeight:     0.3,
		HistoryTurns:      5,
	}
}

// Context carries optional caller context for an analysis.
type Context struct {
	SessionID string
	Profile   *models.UserProfile
}

// Analyzer screens messages against the weighted pattern library. It holds
// no session state and is safe for concurrent use across sessions.
type Analyzer struct {
	patterns []Pattern
	cfg      Config
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConfig overrides the default scoring thresholds.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) { a.cfg = cfg }
}

// WithPatterns overrides the built-in pattern library.
func WithPatterns(patterns []Pattern) Option {
	return func(a *Analyzer) { a.patterns = patterns }
}

// NewAnalyzer creates an analyzer with the built-in patterns and default
// thresholds unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		patterns: DefaultPatterns(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// safeVerdict is the fail-safe result returned when analysis itself fails.
func safeVerdict() models.RiskVerdict {
	return models.RiskVerdict{Level: models.RiskLevelLow}
}

// Analyze scores a message plus recent history and returns a risk verdict.
// It never panics or returns an error: any internal failure degrades to a
// low/zero verdict, logged here so the orchestrator does not have to care.
func (a *Analyzer) Analyze(message string, history []models.ConversationTurn, rctx Context) (verdict models.RiskVerdict) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Analyzer.Analyze: recovered from internal failure, returning safe verdict", "panic", r, "sessionID", rctx.SessionID)
			verdict = safeVerdict()
		}
	}()

	total, categories, maxLevel := a.scoreText(message)

	// Recent user turns contribute at a reduced weight; their detected
	// levels still fold into the running maximum.
	for _, turn := range lastUserTurns(history, a.cfg.HistoryTurns) {
		histScore, histCats, histLevel := a.scoreText(turn.Content)
		if histScore == 0 {
			continue
		}
		total += histScore * a.cfg.HistoryWeight
		for c := range histCats {
			categories[c] = true
		}
		maxLevel = models.MaxRiskLevel(maxLevel, histLevel)
	}

	// Final level is the higher of the max detected level and the
	// threshold-derived level.
	level := models.MaxRiskLevel(maxLevel, a.thresholdLevel(total))

	confidence := total / a.cfg.CriticalThreshold
	if confidence > 1 {
		confidence = 1
	}

	matched := sortedCategories(categories)
	verdict = models.RiskVerdict{
		Level:           level,
		Categories:      matched,
		Concerns:        concernsFor(matched),
		Recommendations: recommendationsFor(matched),
		Block:           level == models.RiskLevelCritical && categories[models.CategorySuicidalIdeation],
		Escalate:        level.AtLeast(models.RiskLevelHigh),
		Confidence:      confidence,
	}

	slog.Debug("Analyzer.Analyze: verdict computed",
		"sessionID", rctx.SessionID,
		"level", verdict.Level,
		"score", total,
		"categories", len(matched),
		"block", verdict.Block,
		"escalate", verdict.Escalate)
	return verdict
}

// scoreText runs the pattern library over one normalized text and returns
// the accumulated score, matched categories, and the maximum base level seen.
func (a *Analyzer) scoreText(text string) (float64, map[models.RiskCategory]bool, models.RiskLevel) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	categories := make(map[models.RiskCategory]bool)
	maxLevel := models.RiskLevelLow
	var total float64

	if normalized == "" {
		return 0, categories, maxLevel
	}

	for _, p := range a.patterns {
		matches := 0
		for _, kw := range p.Keywords {
			if strings.Contains(normalized, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		contextScore := 1.0
		if len(p.Amplifiers) > 0 {
			found := 0
			for _, amp := range p.Amplifiers {
				if strings.Contains(normalized, amp) {
					found++
				}
			}
			contextScore = 1 + float64(found)/float64(len(p.Amplifiers))
		}

		total += float64(matches) * p.Weight * contextScore
		categories[p.Category] = true
		maxLevel = models.MaxRiskLevel(maxLevel, p.Level)
	}

	return total, categories, maxLevel
}

// thresholdLevel derives a level from the accumulated score alone.
func (a *Analyzer) thresholdLevel(total float64) models.RiskLevel {
	switch {
	case total >= a.cfg.CriticalThreshold:
		return models.RiskLevelCritical
	case total >= a.cfg.HighThreshold:
		return models.RiskLevelHigh
	case total >= a.cfg.MediumThreshold:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// lastUserTurns returns up to n most recent user-role turns, oldest first.
func lastUserTurns(history []models.ConversationTurn, n int) []models.ConversationTurn {
	if n <= 0 {
		return nil
	}
	var out []models.ConversationTurn
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == models.RoleUser {
			out = append(out, history[i])
		}
	}
	// Reverse back to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// sortedCategories flattens the matched set in pattern-library order so the
// verdict is deterministic for identical input.
func sortedCategories(set map[models.RiskCategory]bool) []models.RiskCategory {
	order := []models.RiskCategory{
		models.CategorySuicidalIdeation,
		models.CategorySelfHarm,
		models.CategoryViolenceThreat,
		models.CategorySubstanceAbuse,
		models.CategoryPsychosis,
		models.CategorySevereDepression,
		models.CategoryPanic,
		models.CategoryInappropriateContent,
	}
	var out []models.RiskCategory
	for _, c := range order {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}

// concernsFor builds the deduplicated concern list for matched categories.
func concernsFor(categories []models.RiskCategory) []string {
	var out []string
	for _, c := range categories {
		if text, ok := concernTemplates[c]; ok {
			out = append(out, text)
		}
	}
	return out
}

// recommendationsFor builds the deduplicated intervention list for matched
// categories.
func recommendationsFor(categories []models.RiskCategory) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range categories {
		for _, rec := range interventionTemplates[c] {
			if seen[rec] {
				continue
			}
			seen[rec] = true
			out = append(out, rec)
		}
	}
	return out
}
