// Package risk implements deterministic safety screening of counseling
// messages against a weighted keyword pattern library.
package risk

import "github.com/ChineseManHuang/YIXIN-sub000/internal/models"

// Pattern is one entry in the weighted pattern library.
type Pattern struct {
	Category   models.RiskCategory
	Level      models.RiskLevel // base risk level when any keyword matches
	Weight     float64
	Keywords   []string
	Amplifiers []string // optional context terms that amplify the score
}

// DefaultPatterns returns the built-in pattern library. Weights and keyword
// sets are hand-tuned carryovers from the original protocol and have no
// documented clinical derivation; treat them as configuration, not ground
// truth.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Category: models.CategorySuicidalIdeation,
			Level:    models.RiskLevelCritical,
			Weight:   10,
			Keywords: []string{
				"kill myself", "end my life", "want to die", "suicide",
				"better off dead", "not worth living", "end it all",
			},
			Amplifiers: []string{"plan", "tonight", "pills", "goodbye", "note"},
		},
		{
			Category: models.CategorySelfHarm,
			Level:    models.RiskLevelHigh,
			Weight:   8,
			Keywords: []string{
				"hurt myself", "cut myself", "cutting", "self harm", "self-harm",
				"burn myself", "punish myself",
			},
			Amplifiers: []string{"again", "blade", "scars", "deserve"},
		},
		{
			Category: models.CategoryViolenceThreat,
			Level:    models.RiskLevelHigh,
			Weight:   8,
			Keywords: []string{
				"hurt them", "kill them", "hurt someone", "make them pay",
				"revenge", "weapon",
			},
			Amplifiers: []string{"gun", "knife", "tonight", "deserve it"},
		},
		{
			Category: models.CategorySubstanceAbuse,
			Level:    models.RiskLevelMedium,
			Weight:   5,
			Keywords: []string{
				"drinking too much", "drunk every", "overdose", "can't stop drinking",
				"using drugs", "getting high", "blackout",
			},
			Amplifiers: []string{"every day", "alone", "more and more"},
		},
		{
			Category: models.CategoryPsychosis,
			Level:    models.RiskLevelHigh,
			Weight:   7,
			Keywords: []string{
				"hearing voices", "voices tell me", "they are watching me",
				"everyone is against me", "not real", "seeing things",
			},
			Amplifiers: []string{"commands", "follow me", "inside my head"},
		},
		{
			Category: models.CategorySevereDepression,
			Level:    models.RiskLevelMedium,
			Weight:   4,
			Keywords: []string{
				"hopeless", "worthless", "empty inside", "no point", "can't get out of bed",
				"nothing matters", "numb",
			},
			Amplifiers: []string{"weeks", "months", "always", "every day"},
		},
		{
			Category: models.CategoryPanic,
			Level:    models.RiskLevelMedium,
			Weight:   4,
			Keywords: []string{
				"panic attack", "can't breathe", "heart racing", "losing control",
				"going crazy", "chest is tight",
			},
			Amplifiers: []string{"right now", "again", "dying"},
		},
		{
			Category: models.CategoryInappropriateContent,
			Level:    models.RiskLevelLow,
			Weight:   2,
			Keywords: []string{
				"sexual", "explicit", "nude",
			},
			Amplifiers: nil,
		},
	}
}

// concernTemplates maps matched categories to human-readable concern text.
var concernTemplates = map[models.RiskCategory]string{
	models.CategorySuicidalIdeation:     "Expressions of suicidal ideation detected",
	models.CategorySelfHarm:             "References to self-harm detected",
	models.CategoryViolenceThreat:       "Possible threat of violence toward others",
	models.CategorySubstanceAbuse:       "Signs of problematic substance use",
	models.CategoryPsychosis:            "Possible psychotic symptoms (hallucinations or paranoia)",
	models.CategorySevereDepression:     "Indicators of severe depressive mood",
	models.CategoryPanic:                "Signs of acute panic or anxiety",
	models.CategoryInappropriateContent: "Content inappropriate for a counseling setting",
}

// interventionTemplates maps matched categories to recommended interventions.
var interventionTemplates = map[models.RiskCategory][]string{
	models.CategorySuicidalIdeation: {
		"Provide crisis hotline information immediately",
		"Escalate to a human clinician for review",
	},
	models.CategorySelfHarm: {
		"Explore safer coping alternatives with the visitor",
		"Flag the session for clinical follow-up",
	},
	models.CategoryViolenceThreat: {
		"Escalate to a human clinician for risk evaluation",
		"Do not provide guidance that could facilitate harm",
	},
	models.CategorySubstanceAbuse: {
		"Suggest professional substance-use support resources",
	},
	models.CategoryPsychosis: {
		"Recommend prompt evaluation by a psychiatric professional",
	},
	models.CategorySevereDepression: {
		"Monitor mood closely across upcoming turns",
		"Encourage professional in-person support",
	},
	models.CategoryPanic: {
		"Offer grounding and breathing guidance",
	},
	models.CategoryInappropriateContent: {
		"Redirect the conversation to counseling topics",
	},
}
