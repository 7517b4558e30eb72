// Package app contains the core quiz use cases: the round lifecycle,
// answer validation and the write-back stats cache. All round and cache
// mutation happens here; durable storage is reached only through the
// async worker lane.
package app

import (
	"context"
	"strings"
	"time"

	"trivia-service/internal/domain"
)

// Member is a present participant as reported by the presence provider.
type Member struct {
	ID   string
	Name string
}

// BroadcastScope defines who receives a round.
type BroadcastScope string

const (
	ScopeGlobal     BroadcastScope = "GLOBAL"
	ScopeChannel    BroadcastScope = "CHANNEL"
	ScopePermission BroadcastScope = "PERMISSION"
)

// ParseScope maps config input to a scope, defaulting to GLOBAL.
func ParseScope(raw string) BroadcastScope {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ScopeChannel):
		return ScopeChannel
	case string(ScopePermission):
		return ScopePermission
	}
	return ScopeGlobal
}

// ScopeFilter narrows the audience for a single round.
type ScopeFilter struct {
	Scope      BroadcastScope
	Channel    string // anchor channel for CHANNEL scope
	Permission string // required permission for PERMISSION scope
}

// Presence reflects live participant membership. Implementations are
// best-effort: failures yield empty results, never panics.
type Presence interface {
	// Audience returns present participants matching the filter, in join order.
	Audience(ctx context.Context, filter ScopeFilter) []Member
	// Resolve returns the still-present subset of ids, preserving order.
	Resolve(ctx context.Context, ids []string) []Member
	// JoinedAt reports when a participant's session began.
	JoinedAt(ctx context.Context, id string) (time.Time, bool)
}

// Messenger is the presentation sink. The core only chooses message keys
// and placeholders; rendering happens at the edge.
type Messenger interface {
	Broadcast(ids []string, key string, placeholders map[string]string)
	Tell(id string, key string, placeholders map[string]string)
}

// RewardGrantor applies winner rewards. Best-effort and side-effecting;
// failures stay inside the implementation.
type RewardGrantor interface {
	Grant(member Member, question *domain.Question, currentStreak int64)
}

// StatsStorage is the durable backend contract. Implementations assume
// single-writer access; every call must run on the async worker lane.
type StatsStorage interface {
	Load(ctx context.Context, playerID, fallbackName string) (domain.PlayerStats, error)
	LoadByName(ctx context.Context, name string) (domain.PlayerStats, bool, error)
	SaveAll(ctx context.Context, stats []domain.PlayerStats) error
	FetchTop(ctx context.Context, metric domain.LeaderboardMetric, limit int) ([]domain.LeaderboardEntry, error)
}

// Settings is the immutable runtime view of quiz configuration.
type Settings struct {
	Enabled          bool
	AutoEnabled      bool
	AutoInterval     time.Duration
	RoundTimeLimit   time.Duration
	MultipleWinners  bool
	AllowChatAnswers bool
	ChatPrefix       string
	AnswerCooldown   time.Duration
	MinHumanResponse time.Duration
	AvoidRepeats     bool
	RepeatCooldown   int
	MinOnlineTime    time.Duration
	Scope            BroadcastScope
	ScopePermission  string
	// DefaultChannel anchors CHANNEL-scoped rounds that no participant
	// initiated, such as scheduler ticks.
	DefaultChannel string
}

// SessionGate decides reward eligibility independently of correctness.
type SessionGate interface {
	IsRewardEligible(ctx context.Context, playerID string) bool
}

// DurationGate is the session-duration reward-eligibility check, guarding
// against join-and-claim abuse.
type DurationGate struct {
	presence  Presence
	minOnline time.Duration
	now       func() time.Time
}

func NewDurationGate(presence Presence, minOnline time.Duration) *DurationGate {
	return &DurationGate{presence: presence, minOnline: minOnline, now: time.Now}
}

// IsRewardEligible reports whether the participant has been present long
// enough to receive rewards. Unknown sessions are treated as fresh joins.
func (g *DurationGate) IsRewardEligible(ctx context.Context, playerID string) bool {
	if g.minOnline <= 0 {
		return true
	}
	joinedAt, ok := g.presence.JoinedAt(ctx, playerID)
	if !ok {
		return false
	}
	return g.now().Sub(joinedAt) >= g.minOnline
}
