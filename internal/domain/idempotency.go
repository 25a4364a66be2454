// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// VoteReceipt records the result of a previously processed vote request,
// keyed by (voter_email, idea_id, key). It enables safe retries of the vote
// POST endpoint: a retried request carrying the same Idempotency-Key is
// answered with the originally created vote instead of tripping the
// duplicate-vote constraint.
type VoteReceipt struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	VoterEmail string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_email_idea_key,priority:1"`
	IdeaID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_email_idea_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_email_idea_key,priority:3"`
	VoteID     string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (VoteReceipt) TableName() string { return "vote_receipts" }
