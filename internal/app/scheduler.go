package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler starts automatic rounds on a fixed interval, skipping ticks
// while a round is still open.
type Scheduler struct {
	settings Settings
	pool     *QuestionPool
	rounds   *RoundManager
	log      *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(settings Settings, pool *QuestionPool, rounds *RoundManager, log *zap.Logger) *Scheduler {
	return &Scheduler{
		settings: settings,
		pool:     pool,
		rounds:   rounds,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. No-op when auto rounds are disabled
// or there is nothing to ask.
func (s *Scheduler) Start() {
	if !s.settings.Enabled || !s.settings.AutoEnabled || s.pool.Size() == 0 {
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.settings.AutoInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if s.rounds.HasActiveRound() {
		return
	}
	question, ok := s.pool.PickRandom("")
	if !ok {
		return
	}
	if err := s.rounds.StartRound(context.Background(), question, s.settings.DefaultChannel); err != nil {
		s.log.Debug("auto round not started", zap.Error(err))
	}
}

// Stop halts the ticker and waits for the goroutine to exit.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}
