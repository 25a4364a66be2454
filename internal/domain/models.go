// Package domain defines the persistence models for ideas, votes, members,
// and member activities. These types are mapped with GORM and form the core
// data layer of the portal backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Idea statuses. New ideas always start in StatusPending; transitions are
// performed only through the admin endpoint.
const (
	StatusPending     = "pending"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusUnderReview = "under_review"
	StatusPostponed   = "postponed"
	StatusCompleted   = "completed"
)

// Activity types recorded against a member.
const (
	ActivityIdeaProposed    = "idea_proposed"
	ActivityVoteCast        = "vote_cast"
	ActivityEventRegistered = "event_registered"
)

// Idea represents a member-submitted proposal subject to moderation and
// community voting. The vote count is not stored on the row; it is computed
// from the votes table at read time so it can never drift from the actual
// set of voters.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: proposal title (3-200 chars, validated upstream).
//   - Description: optional free text, capped at 5000 chars.
//   - ProposedBy / ProposedByEmail: identity of the proposer; the email is
//     stored lowercase.
//   - Status: lifecycle status (see Status* constants), DB-constrained.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker; votes are cascade-deleted with the idea.
type Idea struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	Title           string         `json:"title"             gorm:"type:varchar(200);not null"`
	Description     string         `json:"description"       gorm:"type:text"`
	ProposedBy      string         `json:"proposed_by"       gorm:"type:varchar(100);not null"`
	ProposedByEmail string         `json:"proposed_by_email" gorm:"type:varchar(255);not null;index"`
	Status          string         `json:"status"            gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','approved','rejected','under_review','postponed','completed')"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`

	// VoteCount is populated by list/detail queries; it is never written.
	VoteCount int64 `json:"vote_count" gorm:"->;-:migration"`
}

// TableName returns the database table name for Idea.
func (Idea) TableName() string { return "ideas" }

// Vote is a single (idea, voter-email) endorsement. A voter may vote at most
// once per idea, enforced by the unique index on (idea_id, voter_email); the
// email is normalized to lowercase before it ever reaches this row.
type Vote struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	IdeaID     string    `json:"idea_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_votes_idea_email,priority:1"`
	VoterName  string    `json:"voter_name"  gorm:"type:varchar(100);not null"`
	VoterEmail string    `json:"voter_email" gorm:"type:varchar(255);not null;index;uniqueIndex:ux_votes_idea_email,priority:2"`
	CreatedAt  time.Time `json:"created_at"`

	// Idea is the parent proposal. Votes are cascade-deleted if the idea
	// is removed.
	Idea Idea `json:"-" gorm:"foreignKey:IdeaID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// Member is a person tracked by email across all engagement-generating
// actions. Rows are created lazily the first time an email performs a
// trackable action and are never deleted automatically.
//
// Score is the cumulative engagement score and always equals the sum of
// ScoreImpact over the member's activity rows; both are written inside the
// same transaction.
type Member struct {
	Email       string    `json:"email"        gorm:"type:varchar(255);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(100)"`
	Company     string    `json:"company"      gorm:"type:varchar(100)"`
	Score       int64     `json:"score"        gorm:"not null;default:0;check:score >= 0"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;default:'active'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Member.
func (Member) TableName() string { return "members" }

// MemberActivity is an append-only record of one engagement-generating
// action. Rows are never mutated or deleted once written.
type MemberActivity struct {
	ID          string    `json:"id"                    gorm:"type:char(36);primaryKey"`
	MemberEmail string    `json:"member_email"          gorm:"type:varchar(255);not null;index"`
	Type        string    `json:"type"                  gorm:"type:varchar(32);not null;check:type IN ('idea_proposed','vote_cast','event_registered')"`
	EntityRef   string    `json:"entity_ref,omitempty"  gorm:"type:char(36)"`
	ScoreImpact int64     `json:"score_impact"          gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`

	// Member is the owning member row; activities follow their member.
	Member Member `json:"-" gorm:"foreignKey:MemberEmail;references:Email;constraint:OnUpdate:CASCADE"`
}

// TableName returns the database table name for MemberActivity.
func (MemberActivity) TableName() string { return "member_activities" }
