package app

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// AnswerService validates submissions against the open round. Every
// rejection is reported only to the submitter through the messenger; the
// returned sentinel error exists for callers and tests.
type AnswerService struct {
	settings  Settings
	rounds    *RoundManager
	messenger Messenger
	gate      SessionGate
	now       func() time.Time

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

func NewAnswerService(settings Settings, rounds *RoundManager, messenger Messenger, gate SessionGate) *AnswerService {
	return &AnswerService{
		settings:  settings,
		rounds:    rounds,
		messenger: messenger,
		gate:      gate,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
}

// Submit runs the full validation pipeline and records the answer on
// success. Rejections refresh the cooldown window where noted, so repeated
// hammering keeps pushing the window forward.
func (s *AnswerService) Submit(ctx context.Context, member Member, roundID int64, rawAnswer string) error {
	round := s.rounds.Active()
	if round == nil || !round.IsOpen() || round.ID != roundID {
		s.messenger.Tell(member.ID, "errors.invalid-round", nil)
		return domain.ErrInvalidRound
	}

	// Silent rejection: outsiders get no feedback at all.
	if !round.IsEligible(member.ID) {
		return domain.ErrNotEligible
	}

	now := s.now()
	if s.settings.AnswerCooldown > 0 {
		s.mu.Lock()
		last, seen := s.cooldowns[member.ID]
		if seen && now.Sub(last) < s.settings.AnswerCooldown {
			remaining := s.settings.AnswerCooldown - now.Sub(last)
			s.cooldowns[member.ID] = now
			s.mu.Unlock()
			s.messenger.Tell(member.ID, "errors.cooldown", map[string]string{
				"time": strconv.FormatInt(remaining.Milliseconds(), 10),
			})
			return domain.ErrCooldownActive
		}
		s.mu.Unlock()
	}

	if round.HasAnswered(member.ID) {
		s.messenger.Tell(member.ID, "errors.already-answered", nil)
		return domain.ErrAlreadyAnswered
	}

	if s.settings.MinHumanResponse > 0 && now.Sub(round.StartedAt) < s.settings.MinHumanResponse {
		s.touchCooldown(member.ID, now)
		s.messenger.Tell(member.ID, "errors.too-fast", nil)
		return domain.ErrTooFast
	}

	question := round.Question
	answerText := strings.TrimSpace(rawAnswer)
	if answerText == "" {
		s.messenger.Tell(member.ID, "errors.invalid-option", nil)
		return domain.ErrInvalidOption
	}

	if question.Kind != domain.KindOpen {
		if _, ok := question.ResolveOptionKey(answerText); !ok {
			s.touchCooldown(member.ID, now)
			s.messenger.Tell(member.ID, "errors.invalid-option", nil)
			return domain.ErrInvalidOption
		}
	}

	correct := question.IsCorrect(answerText)
	rewardEligible := !correct || s.gate.IsRewardEligible(ctx, member.ID)
	if correct && !rewardEligible {
		s.messenger.Tell(member.ID, "errors.ineligible", nil)
	}

	answer := domain.PlayerAnswer{
		PlayerID:       member.ID,
		PlayerName:     member.Name,
		RawInput:       answerText,
		SubmittedAt:    now,
		ResponseTime:   now.Sub(round.StartedAt),
		Correct:        correct,
		RewardEligible: rewardEligible,
	}
	if !round.RecordAnswer(answer) {
		s.messenger.Tell(member.ID, "errors.already-answered", nil)
		return domain.ErrAlreadyAnswered
	}

	s.touchCooldown(member.ID, now)
	if question.Kind == domain.KindOpen {
		// No immediate reveal for open questions.
		s.messenger.Tell(member.ID, "feedback.accepted-open", nil)
		return nil
	}

	key := "feedback.incorrect"
	if correct {
		key = "feedback.correct"
	}
	s.messenger.Tell(member.ID, key, map[string]string{
		"correct": question.CorrectAnswerDisplay(),
		"answer":  question.DisplayFor(answerText),
	})
	return nil
}

// SubmitChat routes a captured chat message into the open round.
func (s *AnswerService) SubmitChat(ctx context.Context, member Member, rawAnswer string) error {
	round := s.rounds.Active()
	if round == nil {
		return domain.ErrInvalidRound
	}
	return s.Submit(ctx, member, round.ID, rawAnswer)
}

// ShouldCapture is the cheap, non-mutating predicate gating whether a raw
// chat message is intercepted as an answer before the full pipeline runs.
func (s *AnswerService) ShouldCapture(member Member, rawMessage string) bool {
	if !s.settings.AllowChatAnswers {
		return false
	}

	round := s.rounds.Active()
	if round == nil || !round.IsOpen() || !round.IsEligible(member.ID) {
		return false
	}

	trimmed := strings.TrimSpace(rawMessage)
	if trimmed == "" {
		return false
	}

	if prefix := s.settings.ChatPrefix; prefix != "" {
		return len(trimmed) > len(prefix) && strings.HasPrefix(trimmed, prefix)
	}

	if round.Question.Kind == domain.KindOpen {
		return false
	}
	_, ok := round.Question.ResolveOptionKey(trimmed)
	return ok
}

// ExtractChatAnswer strips the configured chat prefix from a captured message.
func (s *AnswerService) ExtractChatAnswer(rawMessage string) string {
	trimmed := strings.TrimSpace(rawMessage)
	if prefix := s.settings.ChatPrefix; prefix != "" && strings.HasPrefix(trimmed, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	}
	return trimmed
}

func (s *AnswerService) touchCooldown(playerID string, at time.Time) {
	s.mu.Lock()
	s.cooldowns[playerID] = at
	s.mu.Unlock()
}
