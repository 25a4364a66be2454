// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Idea model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an idea is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Vote counts are attached to returned rows via a correlated subquery on the
// votes table, so a returned Idea's VoteCount always reflects the persisted
// set of voters at query time.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// voteCountSelect appends the per-idea vote count to the selected columns.
const voteCountSelect = "ideas.*, (SELECT COUNT(*) FROM votes v WHERE v.idea_id = ideas.id) AS vote_count"

// CreateIdea inserts a new Idea row in pending status. The idea ID is a
// randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Idea. On failure, it returns a DB error.
func CreateIdea(ctx context.Context, db *gorm.DB, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error) {
	i := &domain.Idea{
		ID:              uuid.NewString(),
		Title:           title,
		Description:     description,
		ProposedBy:      proposedBy,
		ProposedByEmail: proposedByEmail,
		Status:          domain.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(i).Error; err != nil {
		return nil, err
	}
	return i, nil
}

// GetIdea fetches a single idea by its ID, including its current vote count.
// If the record does not exist, it returns ErrNotFound. On other DB errors,
// the raw error is returned.
func GetIdea(ctx context.Context, db *gorm.DB, id string) (*domain.Idea, error) {
	var i domain.Idea
	err := db.WithContext(ctx).
		Model(&domain.Idea{}).
		Select(voteCountSelect).
		Where("ideas.id = ?", id).
		First(&i).Error
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// IdeaExists reports whether an idea row with the given ID exists. It is a
// cheap existence probe used before vote insertion.
func IdeaExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Idea{}).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// CountIdeas returns the total number of ideas. On DB error, it returns the
// error.
func CountIdeas(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Idea{}).
		Count(&total).Error
	return total, err
}

// ListIdeasPage returns a paginated slice of ideas with their vote counts,
// ordered by creation time descending. Use CountIdeas to obtain the total for
// pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListIdeasPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Idea, error) {
	var out []domain.Idea
	err := db.WithContext(ctx).
		Model(&domain.Idea{}).
		Select(voteCountSelect).
		Order("ideas.created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateIdeaStatus updates the status of an idea. If no rows are affected
// (idea missing), it returns ErrNotFound. On DB error, the raw error is
// returned. Status value validation belongs to the service layer.
func UpdateIdeaStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Idea{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
