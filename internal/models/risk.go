// Package models defines data structures for the counseling conversation controller.
package models

import "time"

// RiskLevel is the severity of a screened message. Levels are totally
// ordered: low < medium < high < critical.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// riskLevelRank maps levels onto their position in the severity ordering.
var riskLevelRank = map[RiskLevel]int{
	RiskLevelLow:      0,
	RiskLevelMedium:   1,
	RiskLevelHigh:     2,
	RiskLevelCritical: 3,
}

// Rank returns the position of the level in the severity ordering.
// Unknown levels rank below low.
func (l RiskLevel) Rank() int {
	if r, ok := riskLevelRank[l]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether l is at or above the given level.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// MaxRiskLevel returns the higher of two levels under the severity ordering.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// RiskCategory classifies the kind of concern a pattern detects.
type RiskCategory string

const (
	CategorySuicidalIdeation     RiskCategory = "suicidal_ideation"
	CategorySelfHarm             RiskCategory = "self_harm"
	CategoryViolenceThreat       RiskCategory = "violence_threat"
	CategorySubstanceAbuse       RiskCategory = "substance_abuse"
	CategoryPsychosis            RiskCategory = "psychosis"
	CategorySevereDepression     RiskCategory = "severe_depression"
	CategoryPanic                RiskCategory = "panic"
	CategoryInappropriateContent RiskCategory = "inappropriate_content"
)

// RiskVerdict is the outcome of safety-screening one message.
//
// Invariant: Block is true only when Level is critical AND suicidal ideation
// is among the matched categories. Blocking is deliberately narrower than
// escalation.
type RiskVerdict struct {
	Level           RiskLevel      `json:"level"`
	Categories      []RiskCategory `json:"categories,omitempty"`
	Concerns        []string       `json:"concerns,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Block           bool           `json:"block"`
	Escalate        bool           `json:"escalate"`
	Confidence      float64        `json:"confidence"` // in [0,1]
}

// HasCategory reports whether the verdict matched the given category.
func (v *RiskVerdict) HasCategory(c RiskCategory) bool {
	for _, got := range v.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// RiskAction records what was done about a screened message.
type RiskAction string

const (
	RiskActionMonitored RiskAction = "monitored"
	RiskActionBlocked   RiskAction = "blocked"
	RiskActionAlerted   RiskAction = "alerted"
	RiskActionEscalated RiskAction = "escalated"
)

// RiskLogEntry is the advisory persistence row for a non-trivial verdict.
// The orchestrator only suggests it; the persistence layer owns the write.
type RiskLogEntry struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	Message         string         `json:"message"`
	Level           RiskLevel      `json:"level"`
	Categories      []RiskCategory `json:"categories,omitempty"`
	Concerns        []string       `json:"concerns,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Confidence      float64        `json:"confidence"`
	Action          RiskAction     `json:"action"`
	CreatedAt       time.Time      `json:"created_at"`
}
