package domain

import (
	"strings"
	"time"
)

// PlayerAnswer captures a participant's single submission within a round.
// It is never overwritten once recorded.
type PlayerAnswer struct {
	PlayerID       string
	PlayerName     string
	RawInput       string
	SubmittedAt    time.Time
	ResponseTime   time.Duration
	Correct        bool
	RewardEligible bool
}

// PlayerStats is the cached and persisted per-player aggregate.
// Invariants: Wins+Losses == Plays == TotalAnswers, BestStreak >= CurrentStreak.
type PlayerStats struct {
	PlayerID        string
	LastKnownName   string
	Plays           int64
	Wins            int64
	Losses          int64
	BestStreak      int64
	CurrentStreak   int64
	TotalResponseMs int64
	TotalAnswers    int64
}

// NewPlayerStats returns a zero aggregate seeded with a fallback name.
func NewPlayerStats(playerID, name string) PlayerStats {
	if strings.TrimSpace(name) == "" {
		name = "Unknown"
	}
	return PlayerStats{PlayerID: playerID, LastKnownName: name}
}

// RecordResult applies one round outcome to the aggregate.
func (s *PlayerStats) RecordResult(playerName string, won bool, responseTime time.Duration) {
	if playerName != "" {
		s.LastKnownName = playerName
	}
	s.Plays++
	s.TotalAnswers++
	if ms := responseTime.Milliseconds(); ms > 0 {
		s.TotalResponseMs += ms
	}

	if won {
		s.Wins++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
		return
	}

	s.Losses++
	s.CurrentStreak = 0
}

// AverageResponseMs is derived, never stored.
func (s PlayerStats) AverageResponseMs() float64 {
	if s.TotalAnswers <= 0 {
		return 0
	}
	return float64(s.TotalResponseMs) / float64(s.TotalAnswers)
}

// LeaderboardEntry is a ranked projection returned from storage.
type LeaderboardEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Value      int64  `json:"value"`
}

// LeaderboardMetric selects the ranking column for top-N queries.
type LeaderboardMetric string

const (
	MetricWins   LeaderboardMetric = "wins"
	MetricStreak LeaderboardMetric = "best_streak"
)

// ParseMetric maps user input ("wins"/"streak") to a metric, defaulting to wins.
func ParseMetric(raw string) LeaderboardMetric {
	if strings.EqualFold(strings.TrimSpace(raw), "streak") {
		return MetricStreak
	}
	return MetricWins
}
