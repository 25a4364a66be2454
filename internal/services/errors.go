// Package services defines the business logic for ideas, votes, and member
// engagement. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Idea-related errors.
var (
	// ErrIdeaNotFound indicates that the referenced idea does not exist.
	ErrIdeaNotFound = errors.New("idea not found")

	// ErrInvalidTitle is returned when an idea title is missing or outside
	// the allowed 3-200 character range.
	ErrInvalidTitle = errors.New("title must be 3-200 characters")

	// ErrDescriptionTooLong is returned when an idea description exceeds
	// the 5000 character cap.
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrInvalidStatus is returned when a status transition targets a value
	// outside the known idea lifecycle.
	ErrInvalidStatus = errors.New("unknown idea status")
)

// Vote-related errors.
var (
	// ErrInvalidName is returned when a proposer or voter name is shorter
	// than 2 characters or longer than 100.
	ErrInvalidName = errors.New("name must be 2-100 characters")

	// ErrInvalidEmail is returned when an email address is syntactically
	// invalid.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrAlreadyVoted is returned when a voter attempts to vote twice on
	// the same idea. This is an expected, common-case error and is kept
	// distinct from generic validation failures so clients can render a
	// specific message.
	ErrAlreadyVoted = errors.New("already voted")
)

// Engagement-related errors.
var (
	// ErrInvalidActivityType is returned when an activity record names a
	// type outside the known set.
	ErrInvalidActivityType = errors.New("unknown activity type")

	// ErrNegativeImpact is returned when an activity carries a negative
	// score impact; by convention impacts are non-negative.
	ErrNegativeImpact = errors.New("score impact must be non-negative")
)
