// Member engagement HTTP handlers.
//
// This file exposes the engagement endpoints:
//   - POST /members/activity       (record an activity; internal/triggered)
//   - GET  /members/{email}/score  (current cumulative score)
//
// The activity endpoint exists for trusted internal callers (e.g., the event
// registration flow); vote and idea activities are recorded by their services
// directly and never pass through it.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cjdportal/go-ideas-backend/internal/services"
)

// RecordActivityRequest is the JSON payload for recording a member activity.
type RecordActivityRequest struct {
	// MemberEmail identifies (and lazily creates) the member. The service
	// trims and lowercases it before validating, so the binder only checks
	// presence here.
	MemberEmail string `json:"member_email" binding:"required" example:"jean@test.com"`
	// DisplayName optionally refreshes the member's display name.
	DisplayName string `json:"display_name" binding:"omitempty,max=100" example:"Jean Dupont"`
	// ActivityType is one of idea_proposed, vote_cast, event_registered.
	ActivityType string `json:"activity_type" binding:"required" example:"event_registered"`
	// ScoreImpact overrides the default impact for the activity type.
	ScoreImpact *int64 `json:"score_impact,omitempty" example:"3"`
	// EntityRef optionally links the activity to the acted-upon entity.
	EntityRef string `json:"entity_ref,omitempty" example:"8e2b10bc-66a1-4443-9caf-d8b04c4f3ed0"`
}

// RecordActivityResponse returns the updated member alongside the appended
// activity.
type RecordActivityResponse struct {
	Member   interface{} `json:"member"`
	Activity interface{} `json:"activity"`
}

// ScoreResponse reports a member's cumulative engagement score.
type ScoreResponse struct {
	Email string `json:"email"`
	Score int64  `json:"score"`
}

// RecordActivity godoc
// @ID          recordActivity
// @Summary     Record a member activity
// @Description Upserts the member, appends an append-only activity row, and adjusts the cumulative score.
// @Tags        Members
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RecordActivityRequest true "Activity payload"
//
// @Success     200  {object} handlers.RecordActivityResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /members/activity [post]
func (h *Handlers) RecordActivity(c *gin.Context) {
	var req RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "member_email and activity_type are required")
		return
	}

	impact := h.engSvc.ImpactFor(req.ActivityType)
	if req.ScoreImpact != nil {
		impact = *req.ScoreImpact
	}

	member, activity, err := h.engSvc.Record(c.Request.Context(), req.MemberEmail, req.DisplayName, req.ActivityType, req.EntityRef, impact)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEmail),
			errors.Is(err, services.ErrInvalidActivityType),
			errors.Is(err, services.ErrNegativeImpact):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, RecordActivityResponse{Member: member, Activity: activity})
}

// GetMemberScore godoc
// @ID          getMemberScore
// @Summary     Get a member's engagement score
// @Description Returns the cumulative score; unknown members score 0 rather than 404.
// @Tags        Members
// @Produce     json
//
// @Param       email  path  string  true  "Member email"  format(email)
//
// @Success     200  {object} handlers.ScoreResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid email"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /members/{email}/score [get]
func (h *Handlers) GetMemberScore(c *gin.Context) {
	email := services.NormalizeEmail(c.Param("email"))
	if !services.ValidEmail(email) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid email address")
		return
	}

	score, err := h.engSvc.Score(c.Request.Context(), email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, ScoreResponse{Email: email, Score: score})
}
