package domain

import (
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	if (Idea{}).TableName() != "ideas" {
		t.Fatalf("Idea.TableName() = %q; want %q", (Idea{}).TableName(), "ideas")
	}
	if (Vote{}).TableName() != "votes" {
		t.Fatalf("Vote.TableName() = %q; want %q", (Vote{}).TableName(), "votes")
	}
	if (Member{}).TableName() != "members" {
		t.Fatalf("Member.TableName() = %q; want %q", (Member{}).TableName(), "members")
	}
	if (MemberActivity{}).TableName() != "member_activities" {
		t.Fatalf("MemberActivity.TableName() = %q; want %q", (MemberActivity{}).TableName(), "member_activities")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Idea{}, &Vote{}, &Member{}, &MemberActivity{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Idea{}, &Vote{}, &Member{}, &MemberActivity{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&Vote{}, "ux_votes_idea_email") {
		t.Fatalf("expected unique index ux_votes_idea_email on votes")
	}

	now := time.Now().UTC()

	idea := &Idea{ID: "i1", Title: "Solar panels", ProposedBy: "Ana", ProposedByEmail: "ana@example.org", Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(idea).Error; err != nil {
		t.Fatalf("insert idea: %v", err)
	}

	v1 := &Vote{ID: "v1", IdeaID: "i1", VoterName: "Bob", VoterEmail: "bob@example.org", CreatedAt: now}
	if err := db.Create(v1).Error; err != nil {
		t.Fatalf("insert v1: %v", err)
	}

	// Unique (idea_id, voter_email): second vote by the same email must fail.
	dup := &Vote{ID: "v2", IdeaID: "i1", VoterName: "Bob", VoterEmail: "bob@example.org", CreatedAt: now}
	err := db.Create(dup).Error
	if err == nil {
		t.Fatalf("expected unique violation for duplicate (idea, email) vote")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Fatalf("expected UNIQUE error, got: %v", err)
	}

	// Same email on a different idea is fine.
	other := &Idea{ID: "i2", Title: "Bike parking", ProposedBy: "Cara", ProposedByEmail: "cara@example.org", Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other idea: %v", err)
	}
	if err := db.Create(&Vote{ID: "v3", IdeaID: "i2", VoterName: "Bob", VoterEmail: "bob@example.org", CreatedAt: now}).Error; err != nil {
		t.Fatalf("same voter on another idea should insert: %v", err)
	}

	// CASCADE: hard-deleting an idea removes its votes.
	if err := db.Unscoped().Delete(&Idea{}, "id = ?", "i1").Error; err != nil {
		t.Fatalf("delete idea: %v", err)
	}
	var cnt int64
	if err := db.Model(&Vote{}).Where("idea_id = ?", "i1").Count(&cnt).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected votes of deleted idea to cascade, got %d rows", cnt)
	}
}

func TestMemberActivity_TypeConstraint(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Member{}, &MemberActivity{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	if err := db.Create(&Member{Email: "dana@example.org", DisplayName: "Dana", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert member: %v", err)
	}

	ok := &MemberActivity{ID: "a1", MemberEmail: "dana@example.org", Type: ActivityVoteCast, ScoreImpact: 1, CreatedAt: now}
	if err := db.Create(ok).Error; err != nil {
		t.Fatalf("valid activity type rejected: %v", err)
	}

	bad := &MemberActivity{ID: "a2", MemberEmail: "dana@example.org", Type: "profile_viewed", ScoreImpact: 1, CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK violation for unknown activity type")
	}
}

func TestMember_ScoreCheckConstraint(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Member{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	if err := db.Create(&Member{Email: "neg@example.org", Score: -1}).Error; err == nil {
		t.Fatalf("expected CHECK violation for negative score")
	}
}

func TestIdea_SoftDelete(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idea{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	if err := db.Create(&Idea{ID: "soft1", Title: "Composting", ProposedBy: "E", ProposedByEmail: "e@example.org", Status: StatusPending, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Delete(&Idea{}, "id = ?", "soft1").Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	var visible int64
	db.Model(&Idea{}).Where("id = ?", "soft1").Count(&visible)
	if visible != 0 {
		t.Fatalf("soft-deleted idea still visible in default scope")
	}

	var all int64
	db.Unscoped().Model(&Idea{}).Where("id = ?", "soft1").Count(&all)
	if all != 1 {
		t.Fatalf("soft-deleted row should still exist unscoped")
	}
}
