package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// RoundManager owns the active round lifecycle: Idle -> Open -> Closing -> Idle.
// The active-round slot is exchanged under the mutex before any finish work
// runs, so a timeout firing concurrently with a manual stop executes the
// finish body exactly once.
type RoundManager struct {
	settings  Settings
	presence  Presence
	messenger Messenger
	stats     *StatsCache
	rewards   RewardGrantor
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	seq     int64
	active  *Round
	closing bool
	timeout *time.Timer
}

func NewRoundManager(settings Settings, presence Presence, messenger Messenger, stats *StatsCache, rewards RewardGrantor, log *zap.Logger) *RoundManager {
	return &RoundManager{
		settings:  settings,
		presence:  presence,
		messenger: messenger,
		stats:     stats,
		rewards:   rewards,
		log:       log,
		now:       time.Now,
	}
}

// Active returns the open round, or nil when idle or closing.
func (m *RoundManager) Active() *Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *RoundManager) HasActiveRound() bool {
	return m.Active() != nil
}

// StartRound opens a round against a fresh audience snapshot. It fails when
// a round is already open (or still closing) or the snapshot is empty.
func (m *RoundManager) StartRound(ctx context.Context, question *domain.Question, anchorChannel string) error {
	filter := ScopeFilter{
		Scope:      m.settings.Scope,
		Channel:    anchorChannel,
		Permission: m.settings.ScopePermission,
	}
	audience := m.presence.Audience(ctx, filter)
	if len(audience) == 0 {
		m.log.Debug("skipped round start, no eligible audience")
		return domain.ErrNoAudience
	}

	ids := make([]string, len(audience))
	for i, member := range audience {
		ids[i] = member.ID
	}

	m.mu.Lock()
	if m.active != nil || m.closing {
		m.mu.Unlock()
		return domain.ErrRoundRunning
	}
	m.seq++
	round := newRound(m.seq, question, m.now(), m.settings.RoundTimeLimit, m.settings.MultipleWinners, ids)
	m.active = round
	m.timeout = time.AfterFunc(m.settings.RoundTimeLimit, func() {
		m.finishRound(round.ID, false)
	})
	m.mu.Unlock()

	m.broadcastQuestion(round, ids)
	return nil
}

// FinishRound closes the open round. Returns false when no round is open.
func (m *RoundManager) FinishRound(manualStop bool) bool {
	return m.finishRound(0, manualStop)
}

// finishRound claims the active slot first; expectedID pins a timeout
// trigger to the round that armed it (0 means "whichever is open").
func (m *RoundManager) finishRound(expectedID int64, manualStop bool) bool {
	m.mu.Lock()
	round := m.active
	if round == nil || (expectedID != 0 && round.ID != expectedID) {
		m.mu.Unlock()
		return false
	}
	m.active = nil
	m.closing = true
	timer := m.timeout
	m.timeout = nil
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	round.close()

	defer func() {
		m.mu.Lock()
		m.closing = false
		m.mu.Unlock()
	}()

	ctx := context.Background()
	live := m.presence.Resolve(ctx, round.EligibleIDs())
	liveIDs := make([]string, len(live))
	liveByID := make(map[string]Member, len(live))
	for i, member := range live {
		liveIDs[i] = member.ID
		liveByID[member.ID] = member
	}

	if manualStop {
		m.messenger.Broadcast(liveIDs, "round.stopped", nil)
	}

	winners := pickWinners(round)
	winnerIDs := make([]string, len(winners))
	for i, winner := range winners {
		winnerIDs[i] = winner.PlayerID
	}

	updated := m.stats.RecordRound(round, winnerIDs)
	for _, winner := range winners {
		member, present := liveByID[winner.PlayerID]
		if !present {
			m.log.Debug("winner left before rewards were applied", zap.String("player", winner.PlayerName))
			continue
		}
		var streak int64
		if stats, ok := updated[winner.PlayerID]; ok {
			streak = stats.CurrentStreak
		}
		m.rewards.Grant(member, round.Question, streak)
	}

	m.broadcastSummary(round, winners, liveIDs)
	return true
}

// Abort discards the active round without stats or rewards. Shutdown only.
func (m *RoundManager) Abort() {
	m.mu.Lock()
	timer := m.timeout
	m.timeout = nil
	round := m.active
	m.active = nil
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if round != nil {
		round.close()
	}
}

// pickWinners applies the winner rule: correct and reward-eligible answers
// qualify, all of them when multiple winners are allowed, otherwise only
// the first in submission order.
func pickWinners(round *Round) []domain.PlayerAnswer {
	var winners []domain.PlayerAnswer
	for _, answer := range round.Answers() {
		if answer.Correct && answer.RewardEligible {
			winners = append(winners, answer)
		}
	}
	if len(winners) == 0 {
		return nil
	}
	if round.MultipleWinners {
		return winners
	}
	return winners[:1]
}

func (m *RoundManager) broadcastQuestion(round *Round, ids []string) {
	seconds := strconv.Itoa(int(m.settings.RoundTimeLimit / time.Second))
	m.messenger.Broadcast(ids, "question.header", map[string]string{"round_id": strconv.FormatInt(round.ID, 10)})
	m.messenger.Broadcast(ids, "question.prompt", map[string]string{"question": round.Question.Prompt})
	for _, option := range round.Question.Options {
		m.messenger.Broadcast(ids, "question.option", map[string]string{"option": option.Key, "text": option.Text})
	}
	m.messenger.Broadcast(ids, "question.footer", map[string]string{"seconds": seconds})
	if round.Question.Kind == domain.KindOpen {
		m.messenger.Broadcast(ids, "question.open-hint", map[string]string{
			"round_id":    strconv.FormatInt(round.ID, 10),
			"chat_prefix": m.settings.ChatPrefix,
		})
	}
}

func (m *RoundManager) broadcastSummary(round *Round, winners []domain.PlayerAnswer, ids []string) {
	switch len(winners) {
	case 0:
		m.messenger.Broadcast(ids, "round.no-winner", nil)
	case 1:
		m.messenger.Broadcast(ids, "round.winner-single", map[string]string{
			"player": winners[0].PlayerName,
			"time":   strconv.FormatInt(winners[0].ResponseTime.Milliseconds(), 10),
		})
	default:
		names := make([]string, len(winners))
		for i, winner := range winners {
			names[i] = winner.PlayerName
		}
		m.messenger.Broadcast(ids, "round.winner-multi", map[string]string{"players": domain.JoinNames(names)})
	}
	m.messenger.Broadcast(ids, "round.correct-answer", map[string]string{"answer": round.Question.CorrectAnswerDisplay()})
}
