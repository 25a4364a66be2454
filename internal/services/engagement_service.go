// Package services – EngagementService
//
// This file implements the EngagementService, which maintains the append-only
// activity log per member and the member's derived cumulative score. Members
// are upserted by normalized email the first time they perform a trackable
// action; the activity append and the score increment happen inside one
// transaction so the score always equals the sum of recorded impacts.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
	"github.com/cjdportal/go-ideas-backend/internal/repo"
)

// DefaultImpacts returns the per-activity score impacts used when the caller
// does not supply an explicit value.
func DefaultImpacts() map[string]int64 {
	return map[string]int64{
		domain.ActivityIdeaProposed:    5,
		domain.ActivityVoteCast:        1,
		domain.ActivityEventRegistered: 3,
	}
}

// EngagementService implements the use-cases around member engagement
// tracking: recording activities and reading cumulative scores.
type EngagementService struct {
	// DB is the database handle used for all engagement operations.
	DB *gorm.DB

	// Impacts maps activity types to their default score impacts.
	// Nil falls back to DefaultImpacts().
	Impacts map[string]int64
}

// ImpactFor returns the configured default score impact for activityType.
func (s *EngagementService) ImpactFor(activityType string) int64 {
	impacts := s.Impacts
	if impacts == nil {
		impacts = DefaultImpacts()
	}
	return impacts[activityType]
}

// Record upserts the member row for memberEmail, appends an activity of the
// given type, and increments the member's cumulative score by scoreImpact.
//
// Semantics and validation:
//   - memberEmail must be syntactically valid; otherwise ErrInvalidEmail.
//   - activityType must be one of the known domain activity types;
//     otherwise ErrInvalidActivityType.
//   - scoreImpact must be non-negative; otherwise ErrNegativeImpact.
//   - displayName is optional and refreshes the member's display name
//     when non-empty.
//
// Concurrency & atomicity:
//   - The upsert, the activity append, and the score increment run inside a
//     single transaction, so a partially recorded activity is never visible
//     and Member.Score == SUM(activity impacts) holds after every call.
//
// The returned member carries the post-increment score.
func (s *EngagementService) Record(ctx context.Context, memberEmail, displayName, activityType, entityRef string, scoreImpact int64) (*domain.Member, *domain.MemberActivity, error) {
	email := NormalizeEmail(memberEmail)
	if !ValidEmail(email) {
		return nil, nil, ErrInvalidEmail
	}
	switch activityType {
	case domain.ActivityIdeaProposed, domain.ActivityVoteCast, domain.ActivityEventRegistered:
	default:
		return nil, nil, ErrInvalidActivityType
	}
	if scoreImpact < 0 {
		return nil, nil, ErrNegativeImpact
	}

	var (
		member   *domain.Member
		activity *domain.MemberActivity
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.UpsertMember(ctx, tx, email, strings.TrimSpace(displayName), ""); err != nil {
			return err
		}
		a, err := repo.AppendActivity(ctx, tx, email, activityType, entityRef, scoreImpact)
		if err != nil {
			return err
		}
		if err := repo.AddScore(ctx, tx, email, scoreImpact); err != nil {
			return err
		}
		m, err := repo.GetMember(ctx, tx, email)
		if err != nil {
			return err
		}
		member, activity = m, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return member, activity, nil
}

// Score returns the member's current cumulative score. Unknown members score
// 0; that is not an error.
func (s *EngagementService) Score(ctx context.Context, memberEmail string) (int64, error) {
	email := NormalizeEmail(memberEmail)
	m, err := repo.GetMember(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return m.Score, nil
}
