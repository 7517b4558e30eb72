// Package postgres holds the durable storage backends. Nothing here takes
// locks: every call is serialized through the async worker lane.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"trivia-service/internal/domain"
)

type playerStatsRow struct {
	bun.BaseModel `bun:"table:player_stats"`

	PlayerID        string `bun:"player_id,pk"`
	LastName        string `bun:"last_name,notnull"`
	Plays           int64  `bun:"plays,notnull,default:0"`
	Wins            int64  `bun:"wins,notnull,default:0"`
	Losses          int64  `bun:"losses,notnull,default:0"`
	BestStreak      int64  `bun:"best_streak,notnull,default:0"`
	CurrentStreak   int64  `bun:"current_streak,notnull,default:0"`
	TotalResponseMs int64  `bun:"total_response_ms,notnull,default:0"`
	TotalAnswers    int64  `bun:"total_answers,notnull,default:0"`
}

// StatsStorage persists player aggregates in the player_stats table.
type StatsStorage struct {
	db *bun.DB
}

func NewStatsStorage(db *bun.DB) *StatsStorage {
	return &StatsStorage{db: db}
}

// EnsureSchema is the idempotent create-if-absent path used at startup when
// migrations have not been run explicitly.
func (s *StatsStorage) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS player_stats (
			player_id TEXT PRIMARY KEY,
			last_name TEXT NOT NULL,
			plays BIGINT NOT NULL DEFAULT 0,
			wins BIGINT NOT NULL DEFAULT 0,
			losses BIGINT NOT NULL DEFAULT 0,
			best_streak BIGINT NOT NULL DEFAULT 0,
			current_streak BIGINT NOT NULL DEFAULT 0,
			total_response_ms BIGINT NOT NULL DEFAULT 0,
			total_answers BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_stats_wins ON player_stats (wins DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_player_stats_streak ON player_stats (best_streak DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_player_stats_name ON player_stats (lower(last_name))`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load fetches one aggregate by id. An absent row yields a fresh zero
// aggregate seeded with the fallback name; the row is only created by a
// later flush.
func (s *StatsStorage) Load(ctx context.Context, playerID, fallbackName string) (domain.PlayerStats, error) {
	row := new(playerStatsRow)
	err := s.db.NewSelect().Model(row).Where("player_id = ?", playerID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewPlayerStats(playerID, fallbackName), nil
	}
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("load stats: %w", err)
	}
	return fromRow(row), nil
}

// LoadByName returns the first case-insensitive name match in storage order.
func (s *StatsStorage) LoadByName(ctx context.Context, name string) (domain.PlayerStats, bool, error) {
	row := new(playerStatsRow)
	err := s.db.NewSelect().Model(row).Where("lower(last_name) = lower(?)", name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerStats{}, false, nil
	}
	if err != nil {
		return domain.PlayerStats{}, false, fmt.Errorf("load stats by name: %w", err)
	}
	return fromRow(row), true, nil
}

// SaveAll upserts the batch in a single statement, so a failure never
// reads as partial success.
func (s *StatsStorage) SaveAll(ctx context.Context, stats []domain.PlayerStats) error {
	if len(stats) == 0 {
		return nil
	}
	rows := make([]playerStatsRow, len(stats))
	for i, stat := range stats {
		rows[i] = toRow(stat)
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (player_id) DO UPDATE").
		Set("last_name = EXCLUDED.last_name").
		Set("plays = EXCLUDED.plays").
		Set("wins = EXCLUDED.wins").
		Set("losses = EXCLUDED.losses").
		Set("best_streak = EXCLUDED.best_streak").
		Set("current_streak = EXCLUDED.current_streak").
		Set("total_response_ms = EXCLUDED.total_response_ms").
		Set("total_answers = EXCLUDED.total_answers").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save stats batch: %w", err)
	}
	return nil
}

// FetchTop returns the ranked top-N for the metric, ordered
// metric DESC, wins DESC, plays DESC, name ASC.
func (s *StatsStorage) FetchTop(ctx context.Context, metric domain.LeaderboardMetric, limit int) ([]domain.LeaderboardEntry, error) {
	column := "wins"
	if metric == domain.MetricStreak {
		column = "best_streak"
	}
	if limit < 1 {
		limit = 1
	}

	var rows []playerStatsRow
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr(column + " DESC, wins DESC, plays DESC, last_name ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch top: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, row := range rows {
		value := row.Wins
		if metric == domain.MetricStreak {
			value = row.BestStreak
		}
		entries[i] = domain.LeaderboardEntry{
			PlayerID:   row.PlayerID,
			PlayerName: row.LastName,
			Value:      value,
		}
	}
	return entries, nil
}

func toRow(stats domain.PlayerStats) playerStatsRow {
	return playerStatsRow{
		PlayerID:        stats.PlayerID,
		LastName:        stats.LastKnownName,
		Plays:           stats.Plays,
		Wins:            stats.Wins,
		Losses:          stats.Losses,
		BestStreak:      stats.BestStreak,
		CurrentStreak:   stats.CurrentStreak,
		TotalResponseMs: stats.TotalResponseMs,
		TotalAnswers:    stats.TotalAnswers,
	}
}

func fromRow(row *playerStatsRow) domain.PlayerStats {
	return domain.PlayerStats{
		PlayerID:        row.PlayerID,
		LastKnownName:   row.LastName,
		Plays:           row.Plays,
		Wins:            row.Wins,
		Losses:          row.Losses,
		BestStreak:      row.BestStreak,
		CurrentStreak:   row.CurrentStreak,
		TotalResponseMs: row.TotalResponseMs,
		TotalAnswers:    row.TotalAnswers,
	}
}
