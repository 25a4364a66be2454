package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
	"github.com/cjdportal/go-ideas-backend/internal/repo"
)

// ideaRepoFns adapts the free functions in the repo package to the IdeaRepo
// interface for service tests.
type ideaRepoFns struct{}

func (ideaRepoFns) CreateIdea(ctx context.Context, db *gorm.DB, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error) {
	return repo.CreateIdea(ctx, db, title, description, proposedBy, proposedByEmail)
}

func (ideaRepoFns) GetIdea(ctx context.Context, db *gorm.DB, id string) (*domain.Idea, error) {
	return repo.GetIdea(ctx, db, id)
}

func (ideaRepoFns) CountIdeas(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountIdeas(ctx, db)
}

func (ideaRepoFns) ListIdeasPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Idea, error) {
	return repo.ListIdeasPage(ctx, db, offset, limit)
}

func (ideaRepoFns) UpdateIdeaStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateIdeaStatus(ctx, db, id, status)
}

func newIdeaSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ideasvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Idea{}, &domain.Vote{}, &domain.Member{}, &domain.MemberActivity{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newIdeaSvc(t *testing.T) (*IdeaService, *gorm.DB) {
	t.Helper()
	db := newIdeaSvcDB(t)
	return NewIdeaService(db, ideaRepoFns{}, nil), db
}

func TestIdea_Propose_TitleBounds(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	ctx := context.Background()

	// 2 runes: too short.
	if _, err := svc.Propose(ctx, "ab", "", "Ana", "ana@example.org"); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("2-rune title: expected ErrInvalidTitle, got %v", err)
	}
	// 3 runes: minimum accepted.
	if _, err := svc.Propose(ctx, "abc", "", "Ana", "ana@example.org"); err != nil {
		t.Fatalf("3-rune title rejected: %v", err)
	}
	// 200 runes: maximum accepted.
	if _, err := svc.Propose(ctx, strings.Repeat("x", 200), "", "Ana", "ana2@example.org"); err != nil {
		t.Fatalf("200-rune title rejected: %v", err)
	}
	// 201 runes: too long.
	if _, err := svc.Propose(ctx, strings.Repeat("x", 201), "", "Ana", "ana3@example.org"); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("201-rune title: expected ErrInvalidTitle, got %v", err)
	}
}

func TestIdea_Propose_DescriptionCap(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	ctx := context.Background()

	if _, err := svc.Propose(ctx, "Valid title", strings.Repeat("d", 5000), "Ana", "ana@example.org"); err != nil {
		t.Fatalf("5000-rune description rejected: %v", err)
	}
	if _, err := svc.Propose(ctx, "Valid title", strings.Repeat("d", 5001), "Ana", "ana2@example.org"); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("5001-rune description: expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestIdea_Propose_NameAndEmailValidation(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	ctx := context.Background()

	if _, err := svc.Propose(ctx, "Valid title", "", "A", "ana@example.org"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("1-rune name: expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Propose(ctx, "Valid title", "", strings.Repeat("n", 101), "ana@example.org"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("101-rune name: expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Propose(ctx, "Valid title", "", "Ana", "nope"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("bad email: expected ErrInvalidEmail, got %v", err)
	}
}

func TestIdea_Propose_NormalizesAndTitleCases(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	svc.NameLocale = language.French

	idea, err := svc.Propose(context.Background(), "  Recycling   bins  ", "", "jean dupont", " Jean.Dupont@Example.ORG ")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if idea.Title != "Recycling bins" {
		t.Fatalf("title not normalized: %q", idea.Title)
	}
	if idea.ProposedBy != "Jean Dupont" {
		t.Fatalf("name not title-cased: %q", idea.ProposedBy)
	}
	if idea.ProposedByEmail != "jean.dupont@example.org" {
		t.Fatalf("email not normalized: %q", idea.ProposedByEmail)
	}
	if idea.Status != domain.StatusPending {
		t.Fatalf("new idea status = %q; want pending", idea.Status)
	}
}

func TestIdea_Propose_RecordsProposerEngagement(t *testing.T) {
	db := newIdeaSvcDB(t)
	eng := &EngagementService{DB: db}
	svc := NewIdeaService(db, ideaRepoFns{}, eng)
	ctx := context.Background()

	if _, err := svc.Propose(ctx, "Community garden", "", "Ana", "ana@example.org"); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	score, err := eng.Score(ctx, "ana@example.org")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := DefaultImpacts()[domain.ActivityIdeaProposed]; score != want {
		t.Fatalf("proposer score = %d; want %d", score, want)
	}
}

func TestIdea_Get(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	ctx := context.Background()

	created, err := svc.Propose(ctx, "Valid title", "", "Ana", "ana@example.org")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil || got.ID != created.ID {
		t.Fatalf("Get: %+v, %v", got, err)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrIdeaNotFound) {
		t.Fatalf("expected ErrIdeaNotFound, got %v", err)
	}
}

func TestIdea_ListPage_DefaultsAndEmpty(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	ctx := context.Background()

	items, total, err := svc.ListPage(ctx, -3, 0)
	if err != nil {
		t.Fatalf("ListPage on empty: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty result, got total=%d len=%d", total, len(items))
	}

	for n := 0; n < 3; n++ {
		if _, err := svc.Propose(ctx, fmt.Sprintf("Idea number %d", n), "", "Ana", fmt.Sprintf("a%d@example.org", n)); err != nil {
			t.Fatalf("Propose %d: %v", n, err)
		}
	}

	items, total, err = svc.ListPage(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("page 1: total=%d len=%d; want 3, 2", total, len(items))
	}

	items, total, err = svc.ListPage(ctx, 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("page 2: total=%d len=%d err=%v; want 3, 1", total, len(items), err)
	}
}

func TestIdea_UpdateStatus(t *testing.T) {
	svc, _ := newIdeaSvc(t)
	ctx := context.Background()

	created, err := svc.Propose(ctx, "Valid title", "", "Ana", "ana@example.org")
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if err := svc.UpdateStatus(ctx, created.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := svc.UpdateStatus(ctx, "missing", domain.StatusApproved); !errors.Is(err, ErrIdeaNotFound) {
		t.Fatalf("expected ErrIdeaNotFound, got %v", err)
	}

	if err := svc.UpdateStatus(ctx, created.ID, domain.StatusUnderReview); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil || got.Status != domain.StatusUnderReview {
		t.Fatalf("status after update = %q, err=%v", got.Status, err)
	}
}
