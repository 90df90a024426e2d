// Package models defines data structures for the counseling conversation controller.
package models

import "time"

// StageID identifies one of the five fixed stages of the counseling protocol.
type StageID string

// The five protocol stages, in order. The chain is strictly linear:
// rapport-building → exploration → analysis → solution-planning → consolidation.
const (
	StageRapport       StageID = "stage-1"
	StageExploration   StageID = "stage-2"
	StageAnalysis      StageID = "stage-3"
	StagePlanning      StageID = "stage-4"
	StageConsolidation StageID = "stage-5"
)

// IsValid reports whether the stage id is one of the five fixed stages.
func (id StageID) IsValid() bool {
	switch id {
	case StageRapport, StageExploration, StageAnalysis, StagePlanning, StageConsolidation:
		return true
	default:
		return false
	}
}

// StageDefinition is the immutable, compiled-in definition of a protocol stage.
type StageDefinition struct {
	ID                 StageID  `json:"id"`
	Name               string   `json:"name"`
	Objectives         string   `json:"objectives"`
	KeyQuestions       []string `json:"key_questions"`
	KeywordGroup       []string `json:"keyword_group"`        // terms the stage conversation should cover
	MinMessages        int      `json:"min_messages"`         // minimum user+assistant messages within the stage
	CompletionCriteria []string `json:"completion_criteria"`  // human-readable criteria descriptions
	NextStage          *StageID `json:"next_stage,omitempty"` // nil on the terminal stage
}

// ProgressMetadata carries the last assessment outcome for a session.
// It is replaced wholesale after every turn.
type ProgressMetadata struct {
	CompletionRate float64   `json:"completion_rate"`
	CanAdvance     bool      `json:"can_advance"`
	AssessedAt     time.Time `json:"assessed_at,omitempty"`
	AdvancedAt     time.Time `json:"advanced_at,omitempty"`
}

// StageProgress tracks a session's position in the protocol. One record per
// session, created on the first turn and never deleted while the session
// exists. CurrentStage only ever moves forward along the fixed chain.
type StageProgress struct {
	SessionID       string           `json:"session_id"`
	CurrentStage    StageID          `json:"current_stage"`
	TotalMessages   int              `json:"total_messages"`
	StageMessages   int              `json:"stage_messages"`
	CompletedStages []StageID        `json:"completed_stages,omitempty"`
	Metadata        ProgressMetadata `json:"metadata"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewStageProgress returns the default progress record for a fresh session:
// stage one, zero counts.
func NewStageProgress(sessionID string) *StageProgress {
	return &StageProgress{
		SessionID:    sessionID,
		CurrentStage: StageRapport,
		UpdatedAt:    time.Now(),
	}
}

// Clone returns a deep copy so callers can treat the original as an
// immutable snapshot while building a replacement.
func (p *StageProgress) Clone() *StageProgress {
	cp := *p
	if p.CompletedStages != nil {
		cp.CompletedStages = make([]StageID, len(p.CompletedStages))
		copy(cp.CompletedStages, p.CompletedStages)
	}
	return &cp
}

// HasCompleted reports whether the given stage is in the completed set.
func (p *StageProgress) HasCompleted(id StageID) bool {
	for _, done := range p.CompletedStages {
		if done == id {
			return true
		}
	}
	return false
}

// MarkCompleted adds a stage to the completed set. The set grows
// monotonically; re-adding an already-completed stage is a no-op.
func (p *StageProgress) MarkCompleted(id StageID) {
	if p.HasCompleted(id) {
		return
	}
	p.CompletedStages = append(p.CompletedStages, id)
}
