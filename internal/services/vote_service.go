// Package services – VoteService
//
// This file implements the VoteService, which governs how members vote on
// ideas. It enforces business rules (idea existence, voter validation, the
// one-vote-per-email invariant) and persists votes atomically in the
// database. Service-level errors (e.g. ErrIdeaNotFound, ErrAlreadyVoted,
// ErrInvalidEmail) are returned for predictable cases so handlers can map
// them to HTTP results consistently.
//
// The duplicate check inside the transaction is a fast-path courtesy only;
// the real guarantee under concurrent requests is the unique database index
// on (idea_id, voter_email). A constraint violation from the insert is
// translated into the same ErrAlreadyVoted the fast path would have produced,
// so callers cannot tell which side of the race they were on.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
	"github.com/cjdportal/go-ideas-backend/internal/repo"
)

// VoteService implements the use-cases around casting and counting votes.
// It validates the operation and persists the vote using the provided GORM
// handle. The service is context-aware and opens its own transaction per
// cast.
type VoteService struct {
	// DB is the database handle used for all vote operations.
	DB *gorm.DB

	// Engagement receives a best-effort vote_cast activity after each
	// successful vote. May be nil (scoring disabled).
	Engagement *EngagementService

	// ReceiptTTL bounds how long an Idempotency-Key replays the original
	// vote response. Zero disables receipt creation.
	ReceiptTTL time.Duration
}

// Cast records a vote by voterEmail on ideaID.
//
// Semantics and validation:
//   - voterName must be 2-100 runes; otherwise ErrInvalidName.
//   - voterEmail must be syntactically valid; otherwise ErrInvalidEmail.
//     It is lowercased and trimmed before any comparison or storage.
//   - ideaID must reference an existing idea; otherwise ErrIdeaNotFound.
//   - A voter may vote at most once per idea; a second attempt yields
//     ErrAlreadyVoted. The same email may still vote on other ideas.
//
// Idempotent retries:
//   - When idemKey is non-empty and a non-expired receipt exists for
//     (voterEmail, ideaID, idemKey), the originally created vote is returned
//     with replayed == true and no new row is written.
//
// Side effects on success:
//   - A vote_cast activity is recorded for the voter after the vote has
//     committed. The vote's existence is the source of truth: a failure in
//     this step is logged and counted but never propagated, so the member's
//     score may lag the vote table.
func (s *VoteService) Cast(ctx context.Context, ideaID, voterName, voterEmail, idemKey string) (vote *domain.Vote, replayed bool, err error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Cast",
		trace.WithAttributes(
			attribute.String("idea.id", ideaID),
			attribute.Bool("idempotency.keyed", idemKey != ""),
		),
	)
	defer span.End()

	name := strings.TrimSpace(voterName)
	if !validName(name) {
		return nil, false, ErrInvalidName
	}
	email := NormalizeEmail(voterEmail)
	if !ValidEmail(email) {
		return nil, false, ErrInvalidEmail
	}

	// Serve a stored replay before touching the ledger.
	if idemKey != "" {
		if rec, rerr := repo.GetVoteReceipt(ctx, s.DB, email, ideaID, idemKey, time.Now().UTC()); rerr == nil {
			if v, verr := repo.GetVote(ctx, s.DB, rec.VoteID); verr == nil {
				span.SetAttributes(attribute.Bool("vote.replayed", true))
				return v, true, nil
			}
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) The idea must exist.
		exists, err := repo.IdeaExists(ctx, tx, ideaID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrIdeaNotFound
		}

		// 2) Fast-path duplicate probe.
		voted, err := repo.HasVoted(ctx, tx, ideaID, email)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}

		// 3) Insert; the unique index is the actual guarantee.
		v, err := repo.CreateVote(ctx, tx, ideaID, name, email)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
				return ErrAlreadyVoted
			}
			return err
		}
		vote = v
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			votesDuplicate.Inc()
		}
		return nil, false, err
	}
	votesCast.Inc()

	// Post-commit side channels: receipt for retries, engagement scoring.
	// Neither may fail the vote.
	if idemKey != "" && s.ReceiptTTL > 0 {
		if _, rerr := repo.CreateVoteReceipt(ctx, s.DB, email, ideaID, idemKey, vote.ID, http.StatusCreated, s.ReceiptTTL); rerr != nil && !errors.Is(rerr, repo.ErrDuplicate) {
			log.Warn().Err(rerr).Str("idea_id", ideaID).Msg("vote receipt not stored")
		}
	}
	s.recordEngagement(ctx, email, name, vote.ID)

	return vote, false, nil
}

// recordEngagement appends the vote_cast activity for the voter. Failures are
// observable (log + counter) but deliberately not propagated.
func (s *VoteService) recordEngagement(ctx context.Context, email, name, voteID string) {
	if s.Engagement == nil {
		return
	}
	impact := s.Engagement.ImpactFor(domain.ActivityVoteCast)
	if _, _, err := s.Engagement.Record(ctx, email, name, domain.ActivityVoteCast, voteID, impact); err != nil {
		engagementFailures.Inc()
		log.Error().Err(err).
			Str("member_email", email).
			Str("vote_id", voteID).
			Msg("engagement recording failed after committed vote")
	}
}

// Count returns the number of votes recorded for ideaID, which by the unique
// index equals the number of distinct voter emails. A missing idea yields
// ErrIdeaNotFound.
func (s *VoteService) Count(ctx context.Context, ideaID string) (int64, error) {
	exists, err := repo.IdeaExists(ctx, s.DB, ideaID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrIdeaNotFound
	}
	return repo.CountVotes(ctx, s.DB, ideaID)
}

// isDuplicate attempts to detect unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
