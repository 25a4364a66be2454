// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the VoteReceipt
// model used to implement safe-retry semantics for the vote POST endpoint.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
)

// ErrDuplicate indicates that a receipt already exists for the given
// (voter_email, idea_id, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetVoteReceipt returns a non-expired receipt or ErrNotFound.
func GetVoteReceipt(ctx context.Context, db *gorm.DB, voterEmail, ideaID, key string, now time.Time) (*domain.VoteReceipt, error) {
	if strings.TrimSpace(ideaID) == "" {
		return nil, ErrNotFound
	}
	var rec domain.VoteReceipt
	err := db.WithContext(ctx).
		Where("voter_email = ? AND idea_id = ? AND key = ? AND expires_at > ?", voterEmail, ideaID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateVoteReceipt inserts a receipt and returns ErrDuplicate on unique violation.
func CreateVoteReceipt(ctx context.Context, db *gorm.DB, voterEmail, ideaID, key, voteID string, status int, ttl time.Duration) (*domain.VoteReceipt, error) {
	now := time.Now().UTC()
	rec := &domain.VoteReceipt{
		ID:         uuid.NewString(),
		VoterEmail: voterEmail,
		IdeaID:     ideaID,
		Key:        key,
		VoteID:     voteID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
