package models

import (
	"time"

	"gorm.io/gorm"
)

// Group kinds
const (
	GroupTypeBuying           = "buying"
	GroupTypeInvestment       = "investment"
	GroupTypeCompanyFormation = "company_formation"
	GroupTypeFreelance        = "freelance"
)

// Group statuses
const (
	GroupStatusActive = "active"
	GroupStatusClosed = "closed"
)

// Group is a cooperative unit moving through the lifecycle phases.
type Group struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Description  string `json:"description"`
	Type         string `gorm:"not null" json:"type"`
	Status       string `gorm:"not null;default:'active'" json:"status"`
	Visibility   string `gorm:"not null;default:'public'" json:"visibility"` // public, private
	CurrentPhase string `gorm:"not null;default:'initial';index" json:"current_phase"`
	MinMembers   int    `gorm:"not null" json:"min_members"`
	MaxMembers   int    `gorm:"not null" json:"max_members"`
	MemberCount  int    `gorm:"not null;default:0" json:"member_count"`
	CreatorID    uint   `gorm:"not null;index" json:"creator_id"`

	// Relations
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// GroupMember links a user to a group. Rows are removed on leave so the
// pair index stays unique.
type GroupMember struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GroupID      uint      `gorm:"not null;uniqueIndex:idx_group_member" json:"group_id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_group_member;index" json:"user_id"`
	Role         string    `gorm:"not null;default:'member'" json:"role"` // member, moderator, admin
	VotingWeight int       `gorm:"not null;default:1" json:"voting_weight"`
	Status       string    `gorm:"not null;default:'active'" json:"status"` // active, suspended
	JoinedAt     time.Time `json:"joined_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	User *User `json:"user,omitempty"`
}

// PhaseTransition records every accepted phase change.
type PhaseTransition struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	FromPhase string    `gorm:"not null" json:"from_phase"`
	ToPhase   string    `gorm:"not null" json:"to_phase"`
	ActorID   *uint     `json:"actor_id,omitempty"` // nil when applied by the system
	CreatedAt time.Time `json:"created_at"`
}

// Invite statuses
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
)

// GroupInvite lets a user join a private group.
type GroupInvite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_group_invitee" json:"group_id"`
	InviteeID uint      `gorm:"not null;uniqueIndex:idx_group_invitee;index" json:"invitee_id"`
	InviterID uint      `gorm:"not null" json:"inviter_id"`
	Status    string    `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Group *Group `json:"group,omitempty"`
}
