// Idea HTTP handlers.
//
// This file exposes REST endpoints for idea resources:
//   - POST   /ideas              (propose)
//   - GET    /ideas              (list, paginated with vote counts, ETag support)
//   - GET    /ideas/{id}         (detail)
//   - PUT    /ideas/{id}/status  (admin status transition)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
	"github.com/cjdportal/go-ideas-backend/internal/services"
	"github.com/cjdportal/go-ideas-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// IdeaService defines idea lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IdeaService interface {
	// Propose validates and creates a new idea in pending status.
	Propose(ctx context.Context, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error)
	// Get returns a single idea with its vote count.
	Get(ctx context.Context, id string) (*domain.Idea, error)
	// ListPage returns a page of ideas with vote counts and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Idea, int64, error)
	// UpdateStatus performs an administrative status transition.
	UpdateStatus(ctx context.Context, id, status string) error
}

// VoteService defines vote casting and counting operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type VoteService interface {
	// Cast records a vote for ideaID; replayed is true when an
	// Idempotency-Key matched a previously stored vote.
	Cast(ctx context.Context, ideaID, voterName, voterEmail, idemKey string) (vote *domain.Vote, replayed bool, err error)
	// Count returns the number of distinct-voter votes on ideaID.
	Count(ctx context.Context, ideaID string) (int64, error)
}

// EngagementService defines member engagement operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type EngagementService interface {
	// Record upserts the member, appends an activity, and adjusts the score.
	Record(ctx context.Context, memberEmail, displayName, activityType, entityRef string, scoreImpact int64) (*domain.Member, *domain.MemberActivity, error)
	// Score returns the member's cumulative score (0 for unknown members).
	Score(ctx context.Context, memberEmail string) (int64, error)
	// ImpactFor returns the default score impact for an activity type.
	ImpactFor(activityType string) int64
}

//
// Handler wiring
//

// ListStatsFunc reports the idea count, vote total, and newest update time
// used to derive the weak ETag on idea listings. Vote totals participate so
// that new votes invalidate cached listings.
type ListStatsFunc func(ctx context.Context) (count, votes int64, maxUpdatedAt *time.Time, err error)

// Handlers groups HTTP endpoints for ideas, votes, and member engagement.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	ideaSvc IdeaService
	voteSvc VoteService
	engSvc  EngagementService

	// ListStats feeds conditional responses on GET /ideas. Nil disables
	// ETag generation; the listing is still served.
	ListStats ListStatsFunc
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ideaSvc IdeaService, voteSvc VoteService, engSvc EngagementService) *Handlers {
	return &Handlers{ideaSvc: ideaSvc, voteSvc: voteSvc, engSvc: engSvc}
}

//
// DTOs
//

// ProposeIdeaRequest is the JSON payload for proposing an idea.
type ProposeIdeaRequest struct {
	// Title is the proposal headline (3-200 chars).
	Title string `json:"title" binding:"required,min=3,max=200" example:"Build a community garden"`
	// Description optionally elaborates the proposal (max 5000 chars).
	Description string `json:"description" binding:"omitempty,max=5000" example:"A shared plot behind the office"`
	// ProposedBy is the proposer's display name (2-100 chars).
	ProposedBy string `json:"proposed_by" binding:"required,min=2,max=100" example:"Jean Dupont"`
	// ProposedByEmail identifies the proposer for engagement tracking. The
	// service trims and lowercases it before validating, so the binder only
	// checks presence here.
	ProposedByEmail string `json:"proposed_by_email" binding:"required" example:"jean@test.com"`
}

// UpdateIdeaStatusRequest is the JSON payload for an admin status transition.
type UpdateIdeaStatusRequest struct {
	// Status is the target lifecycle status.
	Status string `json:"status" binding:"required" example:"approved"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListIdeasResponse wraps a page of ideas and pagination information.
type ListIdeasResponse struct {
	Ideas      []domain.Idea `json:"ideas"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ProposeIdea godoc
// @ID          proposeIdea
// @Summary     Propose a new idea
// @Description Creates an idea in pending status and returns the idea resource.
// @Tags        Ideas
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ProposeIdeaRequest  true  "Proposal payload"
//
// @Success     201  {object}  domain.Idea
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limit exceeded"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ideas [post]
func (h *Handlers) ProposeIdea(c *gin.Context) {
	var req ProposeIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid proposal payload")
		return
	}

	idea, err := h.ideaSvc.Propose(c.Request.Context(), req.Title, req.Description, req.ProposedBy, req.ProposedByEmail)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTitle),
			errors.Is(err, services.ErrDescriptionTooLong),
			errors.Is(err, services.ErrInvalidName),
			errors.Is(err, services.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, idea)
}

// ListIdeas godoc
// @ID          listIdeas
// @Summary     List ideas (paginated, with vote counts)
// @Description Returns a page of ideas, each including its vote_count. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Ideas
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListIdeasResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ideas [get]
func (h *Handlers) ListIdeas(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort): a stats failure falls through to a
	// normal listing.
	if h.ListStats != nil {
		count, votes, maxTS, err := h.ListStats(ctx)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"ideas:%d:%d:%d"`, count, votes, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.ideaSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListIdeasResponse{
		Ideas: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetIdea godoc
// @ID          getIdea
// @Summary     Get a single idea
// @Description Returns the idea with its current vote count.
// @Tags        Ideas
// @Produce     json
//
// @Param       id  path  string  true  "Idea ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Idea
// @Failure     400  {object} handlers.ErrorResponse "Invalid idea id"
// @Failure     404  {object} handlers.ErrorResponse "Idea not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ideas/{id} [get]
func (h *Handlers) GetIdea(c *gin.Context) {
	ideaID := c.Param("id")
	if _, err := uuid.Parse(ideaID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "idea id must be a UUID")
		return
	}

	idea, err := h.ideaSvc.Get(c.Request.Context(), ideaID)
	if err != nil {
		if errors.Is(err, services.ErrIdeaNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "idea not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, idea)
}

// UpdateIdeaStatus godoc
// @ID          updateIdeaStatus
// @Summary     Transition an idea's status
// @Description Admin-only lifecycle transition (pending, approved, rejected, under_review, postponed, completed).
// @Tags        Ideas
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Idea ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateIdeaStatusRequest  true  "Target status"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Unknown status"
// @Failure     404  {object} handlers.ErrorResponse "Idea not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ideas/{id}/status [put]
func (h *Handlers) UpdateIdeaStatus(c *gin.Context) {
	ideaID := c.Param("id")
	if _, err := uuid.Parse(ideaID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "idea id must be a UUID")
		return
	}

	var req UpdateIdeaStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	if err := h.ideaSvc.UpdateStatus(c.Request.Context(), ideaID, strings.TrimSpace(req.Status)); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrIdeaNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "idea not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	noContent(c)
}
