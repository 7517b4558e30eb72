package app

import (
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// EconomyProvider is an optional capability for money rewards, resolved
// once at startup. A missing provider is a normal condition.
type EconomyProvider interface {
	Deposit(playerID string, amount float64) error
}

// Rewards resolves named profiles, merges per-question overrides and
// grants the result to winners.
type Rewards struct {
	profiles map[string]domain.RewardDefinition
	economy  EconomyProvider
	sink     Messenger
	log      *zap.Logger

	warnOnce sync.Once
}

func NewRewards(profiles map[string]domain.RewardDefinition, economy EconomyProvider, sink Messenger, log *zap.Logger) *Rewards {
	normalized := make(map[string]domain.RewardDefinition, len(profiles))
	for name, profile := range profiles {
		normalized[strings.ToLower(name)] = profile
	}
	return &Rewards{profiles: normalized, economy: economy, sink: sink, log: log}
}

// Resolve picks the question's profile (falling back to "default") and
// overlays per-question overrides.
func (r *Rewards) Resolve(question *domain.Question) domain.RewardDefinition {
	base, ok := r.profiles[strings.ToLower(question.RewardProfile)]
	if !ok {
		base = r.profiles["default"]
	}
	return base.Merge(question.RewardOverrides)
}

// Grant applies the resolved rewards to one winner. Best-effort: a failed
// or absent economy provider skips money without failing the round.
func (r *Rewards) Grant(member Member, question *domain.Question, currentStreak int64) {
	rewards := r.Resolve(question)
	if rewards.IsEmpty() {
		return
	}

	if rewards.Money > 0 {
		if r.economy == nil {
			r.warnOnce.Do(func() {
				r.log.Warn("money rewards configured but no economy provider is available, skipping them")
			})
		} else if err := r.economy.Deposit(member.ID, rewards.Money); err != nil {
			r.log.Warn("failed to deposit reward", zap.String("player", member.Name), zap.Error(err))
		} else {
			r.sink.Tell(member.ID, "rewards.money", map[string]string{
				"amount": strconv.FormatInt(int64(rewards.Money+0.5), 10),
			})
		}
	}

	if rewards.XP > 0 {
		r.sink.Tell(member.ID, "rewards.xp", map[string]string{"amount": strconv.Itoa(rewards.XP)})
	}

	if len(rewards.Commands) > 0 {
		r.sink.Tell(member.ID, "rewards.commands", map[string]string{
			"amount": strconv.Itoa(len(rewards.Commands)),
			"streak": strconv.FormatInt(currentStreak, 10),
		})
	}
}
