// Vote HTTP handlers.
//
// This file exposes the REST endpoints for casting and counting votes:
//   - POST /ideas/{id}/votes        (cast a vote)
//   - GET  /ideas/{id}/votes/count  (current vote count)
//
// Handlers in this file are transport-thin: they validate input, delegate to
// application services, and translate domain/service errors into HTTP results.
// A duplicate vote is an expected, common-case outcome and is surfaced as a
// 400 with its own "already_voted" code so the portal UI can render specific
// feedback rather than a generic error.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cjdportal/go-ideas-backend/internal/http/middleware"
	"github.com/cjdportal/go-ideas-backend/internal/services"
)

// CastVoteRequest is the JSON payload for voting on an idea.
type CastVoteRequest struct {
	// VoterName is the voter's display name (2-100 chars).
	VoterName string `json:"voter_name" binding:"required,min=2,max=100" example:"Marie Martin"`
	// VoterEmail identifies the voter; one vote per email per idea. The
	// service trims and lowercases it before validating, so the binder only
	// checks presence here.
	VoterEmail string `json:"voter_email" binding:"required" example:"marie@test.com"`
}

// VoteCountResponse reports the number of votes on an idea.
type VoteCountResponse struct {
	IdeaID string `json:"idea_id"`
	Count  int64  `json:"count"`
}

// CastVote godoc
// @ID          castVote
// @Summary     Vote on an idea
// @Description Records one vote per (idea, voter email). Retries carrying the same Idempotency-Key replay the original vote instead of failing as duplicates.
// @Tags        Votes
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       id               path    string  true  "Idea ID (UUID)"  format(uuid)
// @Param       body             body    handlers.CastVoteRequest true "Vote payload"
//
// @Success     201  {object} domain.Vote
// @Failure     400  {object} handlers.ErrorResponse "Validation failed or already voted"
// @Failure     404  {object} handlers.ErrorResponse "Idea not found"
// @Failure     429  {object} handlers.ErrorResponse "Rate limit exceeded"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /ideas/{id}/votes [post]
func (h *Handlers) CastVote(c *gin.Context) {
	ideaID := c.Param("id")
	if _, err := uuid.Parse(ideaID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "idea id must be a UUID")
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "voter_name (2-100 chars) and a valid voter_email are required")
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)

	vote, replayed, err := h.voteSvc.Cast(c.Request.Context(), ideaID, req.VoterName, req.VoterEmail, idemKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIdeaNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "idea not found")
		case errors.Is(err, services.ErrAlreadyVoted):
			fail(c, http.StatusBadRequest, ErrCodeAlreadyVoted, "already voted")
		case errors.Is(err, services.ErrInvalidName), errors.Is(err, services.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	if replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusCreated, vote)
}

// GetVoteCount godoc
// @ID          getVoteCount
// @Summary     Count votes on an idea
// @Description Returns the number of distinct voter emails recorded for the idea.
// @Tags        Votes
// @Produce     json
//
// @Param       id  path  string  true  "Idea ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.VoteCountResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid idea id"
// @Failure     404  {object} handlers.ErrorResponse "Idea not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /ideas/{id}/votes/count [get]
func (h *Handlers) GetVoteCount(c *gin.Context) {
	ideaID := c.Param("id")
	if _, err := uuid.Parse(ideaID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "idea id must be a UUID")
		return
	}

	count, err := h.voteSvc.Count(c.Request.Context(), ideaID)
	if err != nil {
		if errors.Is(err, services.ErrIdeaNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "idea not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, VoteCountResponse{IdeaID: ideaID, Count: count})
}
