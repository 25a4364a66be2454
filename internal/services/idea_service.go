// Package services – IdeaService
//
// This file implements the IdeaService, which manages the lifecycle of ideas.
// It validates and normalizes proposals, coordinates repository operations
// for creating and listing (with pagination and vote counts), and guards the
// admin-only status transitions. Proposer display names are title-cased for
// consistent rendering, but the proposer email is the identity that feeds
// engagement tracking.
//
// Service-level errors (e.g., ErrIdeaNotFound, ErrInvalidTitle) are returned
// for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
)

// IdeaRepo defines the repository contract required by IdeaService.
// Implementations are responsible for persistence of idea aggregates.
type IdeaRepo interface {
	// CreateIdea inserts a new idea row in pending status.
	CreateIdea(ctx context.Context, db *gorm.DB, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error)

	// GetIdea fetches an idea by ID, with its vote count attached.
	GetIdea(ctx context.Context, db *gorm.DB, id string) (*domain.Idea, error)

	// CountIdeas returns the total number of ideas for pagination.
	CountIdeas(ctx context.Context, db *gorm.DB) (int64, error)

	// ListIdeasPage returns a page of ideas with vote counts attached.
	ListIdeasPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Idea, error)

	// UpdateIdeaStatus updates an idea's lifecycle status.
	UpdateIdeaStatus(ctx context.Context, db *gorm.DB, id, status string) error
}

// Title and description bounds for proposals.
const (
	titleMinRunes       = 3
	titleMaxRunes       = 200
	descriptionMaxRunes = 5000
)

// IdeaService provides idea-level operations such as proposing, listing with
// vote counts, and administrative status transitions.
type IdeaService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the idea repository used by this service.
	Repo IdeaRepo

	// Engagement receives a best-effort idea_proposed activity after each
	// successful proposal. May be nil (scoring disabled).
	Engagement *EngagementService

	// NameLocale selects the casing rules applied to proposer display
	// names (the portal serves a French association).
	NameLocale language.Tag
}

// NewIdeaService constructs an IdeaService with the portal's default locale.
func NewIdeaService(db *gorm.DB, r IdeaRepo, eng *EngagementService) *IdeaService {
	return &IdeaService{
		DB:         db,
		Repo:       r,
		Engagement: eng,
		NameLocale: language.French,
	}
}

// Propose validates and persists a new idea in pending status.
//
// Semantics and validation:
//   - title must be 3-200 runes after whitespace normalization;
//     otherwise ErrInvalidTitle.
//   - description is optional but capped at 5000 runes;
//     otherwise ErrDescriptionTooLong.
//   - proposedBy must be 2-100 runes; otherwise ErrInvalidName.
//     It is title-cased per the service locale before storage.
//   - proposedByEmail must be syntactically valid; otherwise
//     ErrInvalidEmail. It is lowercased and trimmed before storage.
//
// On success an idea_proposed activity is recorded for the proposer. That
// recording is best-effort: a failure is logged and counted but the proposal
// still succeeds.
func (s *IdeaService) Propose(ctx context.Context, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error) {
	title = normalizeText(title)
	if n := utf8.RuneCountInString(title); n < titleMinRunes || n > titleMaxRunes {
		return nil, ErrInvalidTitle
	}
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > descriptionMaxRunes {
		return nil, ErrDescriptionTooLong
	}
	name := normalizeText(proposedBy)
	if !validName(name) {
		return nil, ErrInvalidName
	}
	email := NormalizeEmail(proposedByEmail)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	idea, err := s.Repo.CreateIdea(ctx, s.DB, title, description, s.displayName(name), email)
	if err != nil {
		return nil, err
	}

	if s.Engagement != nil {
		impact := s.Engagement.ImpactFor(domain.ActivityIdeaProposed)
		if _, _, err := s.Engagement.Record(ctx, email, idea.ProposedBy, domain.ActivityIdeaProposed, idea.ID, impact); err != nil {
			engagementFailures.Inc()
			log.Error().Err(err).
				Str("member_email", email).
				Str("idea_id", idea.ID).
				Msg("engagement recording failed after committed idea")
		}
	}

	return idea, nil
}

// Get fetches a single idea with its vote count, or ErrIdeaNotFound.
func (s *IdeaService) Get(ctx context.Context, id string) (*domain.Idea, error) {
	idea, err := s.Repo.GetIdea(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdeaNotFound
		}
		return nil, err
	}
	return idea, nil
}

// ListPage returns a page of ideas with vote counts (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *IdeaService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Idea, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountIdeas(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Idea{}, 0, nil
	}

	items, err := s.Repo.ListIdeasPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// UpdateStatus performs an administrative status transition. The target must
// be one of the known lifecycle statuses; otherwise ErrInvalidStatus. A
// missing idea yields ErrIdeaNotFound.
func (s *IdeaService) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case domain.StatusPending, domain.StatusApproved, domain.StatusRejected,
		domain.StatusUnderReview, domain.StatusPostponed, domain.StatusCompleted:
	default:
		return ErrInvalidStatus
	}
	if err := s.Repo.UpdateIdeaStatus(ctx, s.DB, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIdeaNotFound
		}
		return err
	}
	return nil
}

// displayName title-cases a proposer name per the service locale
// ("jean dupont" -> "Jean Dupont").
func (s *IdeaService) displayName(name string) string {
	tag := s.NameLocale
	if tag == (language.Tag{}) {
		tag = language.Und
	}
	return cases.Title(tag).String(name)
}

// normalizeText trims whitespace and collapses multiple spaces to one.
func normalizeText(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
