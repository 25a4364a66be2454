// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules to the services package.
//
// Error semantics:
//   - Duplicate votes (same idea_id, voter_email) rely on the database
//     unique constraint and are returned as a raw DB error. The service layer
//     translates that into a domain error (ErrAlreadyVoted).
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
//
// The voter email must already be normalized (lowercased, trimmed) by the
// caller; the repository performs no normalization of its own.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
)

// CreateVote inserts a vote row for the given idea and voter.
//
// The combination (idea_id, voter_email) must be unique, enforced by the
// database schema (unique index). If a duplicate exists, the database will
// return an error which should be translated by the service layer into a
// domain-level duplicate error. The application-level HasVoted probe is only
// a fast path; this constraint is the actual guarantee under concurrency.
//
// On success, it returns the persisted Vote. On failure, it returns a DB error.
func CreateVote(ctx context.Context, db *gorm.DB, ideaID, voterName, voterEmail string) (*domain.Vote, error) {
	v := &domain.Vote{
		ID:         uuid.NewString(),
		IdeaID:     ideaID,
		VoterName:  voterName,
		VoterEmail: voterEmail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// HasVoted reports whether a vote already exists for (ideaID, voterEmail).
func HasVoted(ctx context.Context, db *gorm.DB, ideaID, voterEmail string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("idea_id = ? AND voter_email = ?", ideaID, voterEmail).
		Count(&n).Error
	return n > 0, err
}

// CountVotes returns the number of votes recorded for the given idea. Because
// of the unique index this equals the number of distinct voter emails.
func CountVotes(ctx context.Context, db *gorm.DB, ideaID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("idea_id = ?", ideaID).
		Count(&total).Error
	return total, err
}

// GetVote fetches a vote by its ID, or ErrNotFound. Used to serve idempotent
// replays of the vote endpoint.
func GetVote(ctx context.Context, db *gorm.DB, id string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}
