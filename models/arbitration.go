package models

import (
	"time"

	"gorm.io/gorm"
)

// Arbitration case statuses
const (
	CaseOpen        = "open"
	CaseUnderReview = "under_review"
	CaseResolved    = "resolved"
	CaseDismissed   = "dismissed"
)

// ArbitrationCase is a dispute raised inside a group during contracting
// or execution.
type ArbitrationCase struct {
	gorm.Model
	GroupID      uint       `gorm:"not null;index" json:"group_id"`
	FiledBy      uint       `gorm:"not null;index" json:"filed_by"`
	RespondentID *uint      `json:"respondent_id,omitempty"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Status       string     `gorm:"not null;default:'open';index" json:"status"`
	Priority     string     `gorm:"not null;default:'medium'" json:"priority"` // low, medium, high
	AssignedTo   *uint      `json:"assigned_to,omitempty"`
	Resolution   string     `gorm:"type:text" json:"resolution,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

var caseTransitions = map[string][]string{
	CaseOpen:        {CaseUnderReview, CaseDismissed},
	CaseUnderReview: {CaseResolved, CaseDismissed},
}

// CanMoveTo reports whether a case may go from its status to next.
func (a *ArbitrationCase) CanMoveTo(next string) bool {
	for _, allowed := range caseTransitions[a.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}
