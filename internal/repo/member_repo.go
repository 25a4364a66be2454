// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Member and
// MemberActivity models.
//
// Members are keyed by their normalized email and created lazily
// ("upsert") the first time that email performs a trackable action.
// Activities are append-only: there is no update or delete function here,
// and none should be added.
//
// Error semantics:
//   - GetMember returns gorm.ErrRecordNotFound (ErrNotFound) when absent.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
)

// UpsertMember ensures a member row exists for email, creating it with a zero
// score when absent. An existing row is left untouched except for its
// display name and company, which are refreshed when non-empty values are
// provided. The email must already be normalized by the caller.
func UpsertMember(ctx context.Context, db *gorm.DB, email, displayName, company string) (*domain.Member, error) {
	m := &domain.Member{
		Email:       email,
		DisplayName: displayName,
		Company:     company,
		Score:       0,
		Status:      "active",
		CreatedAt:   time.Now().UTC(),
	}
	assignments := map[string]interface{}{"updated_at": time.Now().UTC()}
	if displayName != "" {
		assignments["display_name"] = displayName
	}
	if company != "" {
		assignments["company"] = company
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	// Re-read so the returned row carries the persisted score.
	return GetMember(ctx, db, email)
}

// GetMember fetches a member by normalized email, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	var m domain.Member
	err := db.WithContext(ctx).
		Where("email = ?", email).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AppendActivity inserts an append-only activity row for the member.
// On success, it returns the persisted MemberActivity. On failure, it returns
// a DB error.
func AppendActivity(ctx context.Context, db *gorm.DB, memberEmail, activityType, entityRef string, scoreImpact int64) (*domain.MemberActivity, error) {
	a := &domain.MemberActivity{
		ID:          uuid.NewString(),
		MemberEmail: memberEmail,
		Type:        activityType,
		EntityRef:   entityRef,
		ScoreImpact: scoreImpact,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// AddScore atomically increments the member's cumulative score by delta.
// It returns ErrNotFound when the member row does not exist.
func AddScore(ctx context.Context, db *gorm.DB, email string, delta int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("email = ?", email).
		Update("score", gorm.Expr("score + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SumActivityImpacts returns the sum of score impacts recorded for the
// member. Used by tests and consistency checks against Member.Score.
func SumActivityImpacts(ctx context.Context, db *gorm.DB, email string) (int64, error) {
	var row struct {
		Total int64
	}
	err := db.WithContext(ctx).
		Model(&domain.MemberActivity{}).
		Select("COALESCE(SUM(score_impact), 0) AS total").
		Where("member_email = ?", email).
		Scan(&row).Error
	return row.Total, err
}
