// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
)

// IdeasStats returns aggregate metadata for the ideas table: the total number
// of rows, the maximum UpdatedAt timestamp among those rows, and the total
// number of votes across all ideas.
//
// The vote total participates in the ETag so that a new vote (which changes a
// listed idea's vote_count but not its UpdatedAt) still invalidates cached
// listings. When there are no ideas, the returned counts are 0 and
// maxUpdatedAt is nil.
//
// Return values:
//   - count:        total ideas
//   - votes:        total votes across all ideas
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func IdeasStats(ctx context.Context, db *gorm.DB) (count, votes int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Idea{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}

	if err = db.WithContext(ctx).Model(&domain.Vote{}).Count(&votes).Error; err != nil {
		return 0, 0, nil, err
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, votes, &row.UpdatedAt, nil
}
