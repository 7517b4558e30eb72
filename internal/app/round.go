package app

import (
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// Round is the single live question-and-answer cycle. The eligibility
// snapshot is frozen at creation; only answer recording and closing
// mutate it afterwards.
type Round struct {
	ID              int64
	Question        *domain.Question
	StartedAt       time.Time
	ClosesAt        time.Time
	MultipleWinners bool

	mu            sync.RWMutex
	eligible      map[string]struct{}
	eligibleOrder []string
	answers       map[string]*domain.PlayerAnswer
	order         []string
	open          bool
}

func newRound(id int64, question *domain.Question, startedAt time.Time, timeLimit time.Duration, multipleWinners bool, eligibleIDs []string) *Round {
	eligible := make(map[string]struct{}, len(eligibleIDs))
	order := make([]string, 0, len(eligibleIDs))
	for _, playerID := range eligibleIDs {
		if _, ok := eligible[playerID]; ok {
			continue
		}
		eligible[playerID] = struct{}{}
		order = append(order, playerID)
	}
	return &Round{
		ID:              id,
		Question:        question,
		StartedAt:       startedAt,
		ClosesAt:        startedAt.Add(timeLimit),
		MultipleWinners: multipleWinners,
		eligible:        eligible,
		eligibleOrder:   order,
		answers:         make(map[string]*domain.PlayerAnswer),
		open:            true,
	}
}

func (r *Round) IsOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open
}

func (r *Round) IsEligible(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.eligible[playerID]
	return ok
}

func (r *Round) HasAnswered(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.answers[playerID]
	return ok
}

// RecordAnswer stores the answer unless the round is closed or the player
// already answered. The check and the write share one critical section, so
// duplicate submissions racing each other cannot both succeed.
func (r *Round) RecordAnswer(answer domain.PlayerAnswer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return false
	}
	if _, ok := r.answers[answer.PlayerID]; ok {
		return false
	}
	r.answers[answer.PlayerID] = &answer
	r.order = append(r.order, answer.PlayerID)
	return true
}

// Answers returns recorded answers in submission order.
func (r *Round) Answers() []domain.PlayerAnswer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	answers := make([]domain.PlayerAnswer, 0, len(r.order))
	for _, playerID := range r.order {
		answers = append(answers, *r.answers[playerID])
	}
	return answers
}

// EligibleIDs returns the frozen snapshot in join order.
func (r *Round) EligibleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.eligibleOrder...)
}

func (r *Round) close() {
	r.mu.Lock()
	r.open = false
	r.mu.Unlock()
}
