package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trivia-service/internal/async"
	"trivia-service/internal/domain"
)

// StatsCache is the write-back cache of per-player aggregates. The cache is
// the immediate source of truth; persistence trails asynchronously through
// the worker lane, with dirty ids retried until a flush succeeds.
type StatsCache struct {
	storage StatsStorage
	worker  *async.Worker
	log     *zap.Logger
	sf      singleflight.Group

	mu       sync.Mutex
	cache    map[string]*domain.PlayerStats
	dirty    map[string]struct{}
	disabled bool
	warnOnce sync.Once
}

func NewStatsCache(storage StatsStorage, worker *async.Worker, log *zap.Logger) *StatsCache {
	return &StatsCache{
		storage: storage,
		worker:  worker,
		log:     log,
		cache:   make(map[string]*domain.PlayerStats),
		dirty:   make(map[string]struct{}),
	}
}

// DisablePersistence switches the cache to memory-only mode after a fatal
// storage failure. Stats keep working for the process lifetime; the warning
// is emitted once, not per operation.
func (c *StatsCache) DisablePersistence() {
	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	c.warnOnce.Do(func() {
		c.log.Warn("stats persistence unavailable, serving from memory only")
	})
}

func (c *StatsCache) persistenceDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled || c.storage == nil
}

// GetOrLoad returns a snapshot of the player's aggregate, loading it from
// storage on a miss. Concurrent misses for the same id are collapsed by
// singleflight, and the first writer wins when seeding the cache.
func (c *StatsCache) GetOrLoad(ctx context.Context, playerID, fallbackName string) (domain.PlayerStats, error) {
	c.mu.Lock()
	if cached, ok := c.cache[playerID]; ok {
		snapshot := *cached
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	if c.persistenceDisabled() {
		return c.seed(domain.NewPlayerStats(playerID, fallbackName)), nil
	}

	result, err, _ := c.sf.Do(playerID, func() (interface{}, error) {
		c.mu.Lock()
		if cached, ok := c.cache[playerID]; ok {
			snapshot := *cached
			c.mu.Unlock()
			return snapshot, nil
		}
		c.mu.Unlock()

		future := async.Submit(c.worker, func(ctx context.Context) (domain.PlayerStats, error) {
			return c.storage.Load(ctx, playerID, fallbackName)
		})
		loaded := <-future
		if loaded.Err != nil {
			return domain.PlayerStats{}, loaded.Err
		}
		return c.seed(loaded.Value), nil
	})
	if err != nil {
		return domain.PlayerStats{}, err
	}
	return result.(domain.PlayerStats), nil
}

// seed installs the aggregate unless another writer got there first, and
// returns a snapshot of whichever entry survives.
func (c *StatsCache) seed(stats domain.PlayerStats) domain.PlayerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.cache[stats.PlayerID]; ok {
		return *existing
	}
	entry := stats
	c.cache[stats.PlayerID] = &entry
	return entry
}

// LoadByName scans cached entries case-insensitively, then falls back to
// storage, seeding the cache on a hit.
func (c *StatsCache) LoadByName(ctx context.Context, name string) (domain.PlayerStats, error) {
	c.mu.Lock()
	for _, stats := range c.cache {
		if strings.EqualFold(stats.LastKnownName, name) {
			snapshot := *stats
			c.mu.Unlock()
			return snapshot, nil
		}
	}
	c.mu.Unlock()

	if c.persistenceDisabled() {
		return domain.PlayerStats{}, domain.ErrStatsNotFound
	}

	future := async.Submit(c.worker, func(ctx context.Context) (domain.PlayerStats, error) {
		stats, found, err := c.storage.LoadByName(ctx, name)
		if err != nil {
			return domain.PlayerStats{}, err
		}
		if !found {
			return domain.PlayerStats{}, domain.ErrStatsNotFound
		}
		return stats, nil
	})
	loaded := <-future
	if loaded.Err != nil {
		return domain.PlayerStats{}, loaded.Err
	}
	return c.seed(loaded.Value), nil
}

// FetchTop runs the ranked query on the worker lane and waits for it.
func (c *StatsCache) FetchTop(ctx context.Context, metric domain.LeaderboardMetric, limit int) ([]domain.LeaderboardEntry, error) {
	if c.persistenceDisabled() {
		return nil, domain.ErrStatsNotFound
	}
	future := async.Submit(c.worker, func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		return c.storage.FetchTop(ctx, metric, limit)
	})
	result := <-future
	return result.Value, result.Err
}

// RecordRound applies the aggregate update for every answering participant,
// winners and losers alike, then schedules an asynchronous flush. Runs
// entirely in memory.
func (c *StatsCache) RecordRound(round *Round, winnerIDs []string) map[string]domain.PlayerStats {
	answers := round.Answers()
	if len(answers) == 0 {
		return nil
	}

	winners := make(map[string]struct{}, len(winnerIDs))
	for _, id := range winnerIDs {
		winners[id] = struct{}{}
	}

	updated := make(map[string]domain.PlayerStats, len(answers))
	c.mu.Lock()
	for _, answer := range answers {
		stats, ok := c.cache[answer.PlayerID]
		if !ok {
			entry := domain.NewPlayerStats(answer.PlayerID, answer.PlayerName)
			stats = &entry
			c.cache[answer.PlayerID] = stats
		}
		_, won := winners[answer.PlayerID]
		stats.RecordResult(answer.PlayerName, won, answer.ResponseTime)
		c.dirty[answer.PlayerID] = struct{}{}
		updated[answer.PlayerID] = *stats
	}
	c.mu.Unlock()

	c.FlushDirty()
	return updated
}

// FlushDirty atomically drains the dirty set and submits one batched upsert.
// On failure every drained id is re-marked dirty, so persistence is
// at-least-once and an update is never silently dropped.
func (c *StatsCache) FlushDirty() <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	if c.disabled || c.storage == nil || len(c.dirty) == 0 {
		c.mu.Unlock()
		done <- nil
		return done
	}
	snapshot := make([]domain.PlayerStats, 0, len(c.dirty))
	drained := make([]string, 0, len(c.dirty))
	for playerID := range c.dirty {
		if stats, ok := c.cache[playerID]; ok {
			snapshot = append(snapshot, *stats)
			drained = append(drained, playerID)
		}
	}
	c.dirty = make(map[string]struct{})
	c.mu.Unlock()

	if len(snapshot) == 0 {
		done <- nil
		return done
	}

	err := c.worker.Run(func(ctx context.Context) {
		err := c.storage.SaveAll(ctx, snapshot)
		if err != nil {
			c.log.Error("failed to persist player stats, will retry on next flush", zap.Error(err), zap.Int("players", len(snapshot)))
			c.mu.Lock()
			for _, playerID := range drained {
				c.dirty[playerID] = struct{}{}
			}
			c.mu.Unlock()
		}
		done <- err
	})
	if err != nil {
		c.mu.Lock()
		for _, playerID := range drained {
			c.dirty[playerID] = struct{}{}
		}
		c.mu.Unlock()
		done <- err
	}
	return done
}

// FlushDirtyBlocking waits for one flush to finish. Shutdown only; failures
// are logged, never raised further.
func (c *StatsCache) FlushDirtyBlocking(timeout time.Duration) {
	select {
	case err := <-c.FlushDirty():
		if err != nil {
			c.log.Warn("failed to flush stats during shutdown", zap.Error(err))
		}
	case <-time.After(timeout):
		c.log.Warn("stats flush did not finish before shutdown deadline")
	}
}
