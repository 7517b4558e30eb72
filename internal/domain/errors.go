package domain

import "errors"

var (
	// ErrInvalidRound is returned when no round is open or the round id is stale.
	ErrInvalidRound = errors.New("no matching open round")
	// ErrNotEligible is returned when the submitter was not in the round's snapshot.
	ErrNotEligible = errors.New("participant not eligible for this round")
	// ErrCooldownActive is returned while the per-player cooldown window is running.
	ErrCooldownActive = errors.New("answer cooldown active")
	// ErrAlreadyAnswered is returned on duplicate submissions within a round.
	ErrAlreadyAnswered = errors.New("already answered this round")
	// ErrTooFast is returned when a submission beats the minimum human response time.
	ErrTooFast = errors.New("answered faster than the human-response threshold")
	// ErrInvalidOption is returned when input cannot be resolved to an option.
	ErrInvalidOption = errors.New("input does not match any option")
	// ErrQuestionNotFound indicates a question id or category with no content.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrRoundRunning is returned when a start request races an open round.
	ErrRoundRunning = errors.New("a round is already running")
	// ErrNoAudience is returned when the audience snapshot would be empty.
	ErrNoAudience = errors.New("no eligible audience")
	// ErrStatsNotFound is returned by name lookups with no match.
	ErrStatsNotFound = errors.New("no stats recorded for that player")
)
