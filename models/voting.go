package models

import (
	"time"

	"gorm.io/gorm"
)

// VotingSession is a time-boxed poll scoped to one group.
type VotingSession struct {
	gorm.Model
	GroupID        uint       `gorm:"not null;index" json:"group_id"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `json:"description"`
	Kind           string     `gorm:"not null;default:'general'" json:"kind"`          // general, admin_election
	Status         string     `gorm:"not null;default:'active';index" json:"status"` // active, closed
	Deadline       time.Time  `gorm:"not null;index" json:"deadline"`
	CreatedBy      uint       `gorm:"not null" json:"created_by"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	WinnerOptionID *uint      `json:"winner_option_id,omitempty"`

	// Relations
	Options []VotingOption `gorm:"foreignKey:VotingSessionID" json:"options"`
}

// VotingOption is one choice of a session. CandidateID is set for admin
// elections.
type VotingOption struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	VotingSessionID uint   `gorm:"not null;index" json:"voting_session_id"`
	Position        int    `gorm:"not null" json:"position"`
	Label           string `gorm:"not null" json:"label"`
	CandidateID     *uint  `json:"candidate_id,omitempty"`
}

// Vote is the single ballot of a user in a session.
type Vote struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	VotingSessionID uint      `gorm:"not null;uniqueIndex:idx_vote_session_user" json:"voting_session_id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_vote_session_user" json:"user_id"`
	OptionID        uint      `gorm:"not null;index" json:"option_id"`
	VotedAt         time.Time `gorm:"not null" json:"voted_at"`
}
