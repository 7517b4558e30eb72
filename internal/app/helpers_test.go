package app_test

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/async"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

type sentMessage struct {
	target       string
	key          string
	placeholders map[string]string
}

// fakeMessenger records every tell and broadcast for assertions.
type fakeMessenger struct {
	mu         sync.Mutex
	tells      []sentMessage
	broadcasts []sentMessage
}

func (f *fakeMessenger) Tell(id string, key string, placeholders map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tells = append(f.tells, sentMessage{target: id, key: key, placeholders: placeholders})
}

func (f *fakeMessenger) Broadcast(ids []string, key string, placeholders map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.broadcasts = append(f.broadcasts, sentMessage{target: id, key: key, placeholders: placeholders})
	}
}

func (f *fakeMessenger) tellKeys(target string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, msg := range f.tells {
		if msg.target == target {
			keys = append(keys, msg.key)
		}
	}
	return keys
}

func (f *fakeMessenger) broadcastKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var keys []string
	for _, msg := range f.broadcasts {
		if _, ok := seen[msg.key]; ok {
			continue
		}
		seen[msg.key] = struct{}{}
		keys = append(keys, msg.key)
	}
	return keys
}

func (f *fakeMessenger) broadcastTargets(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var targets []string
	for _, msg := range f.broadcasts {
		if msg.key == key {
			targets = append(targets, msg.target)
		}
	}
	return targets
}

func (f *fakeMessenger) sawBroadcast(key string) bool {
	for _, k := range f.broadcastKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// fakeGate marks listed players as reward-ineligible; everyone else passes.
type fakeGate struct {
	mu         sync.Mutex
	ineligible map[string]struct{}
}

func newFakeGate(ineligible ...string) *fakeGate {
	g := &fakeGate{ineligible: make(map[string]struct{})}
	for _, id := range ineligible {
		g.ineligible[id] = struct{}{}
	}
	return g
}

func (g *fakeGate) IsRewardEligible(_ context.Context, playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, blocked := g.ineligible[playerID]
	return !blocked
}

type testEnv struct {
	presence  *memory.Presence
	messenger *fakeMessenger
	gate      *fakeGate
	worker    *async.Worker
	stats     *app.StatsCache
	rounds    *app.RoundManager
	answers   *app.AnswerService
	settings  app.Settings
}

func defaultSettings() app.Settings {
	return app.Settings{
		Enabled:          true,
		RoundTimeLimit:   time.Minute,
		AllowChatAnswers: true,
		ChatPrefix:       "!",
		Scope:            app.ScopeGlobal,
	}
}

func newTestEnv(settings app.Settings, storage app.StatsStorage) *testEnv {
	log := zap.NewNop()
	worker := async.New()
	messenger := &fakeMessenger{}
	gate := newFakeGate()
	presence := memory.NewPresence()
	stats := app.NewStatsCache(storage, worker, log)
	rewards := app.NewRewards(nil, nil, messenger, log)
	rounds := app.NewRoundManager(settings, presence, messenger, stats, rewards, log)
	answers := app.NewAnswerService(settings, rounds, messenger, gate)
	return &testEnv{
		presence:  presence,
		messenger: messenger,
		gate:      gate,
		worker:    worker,
		stats:     stats,
		rounds:    rounds,
		answers:   answers,
		settings:  settings,
	}
}

func (e *testEnv) close() {
	e.rounds.Abort()
	e.worker.Shutdown(time.Second)
}

func (e *testEnv) join(id, name string) app.Member {
	return e.joinChannel(id, name, "")
}

func (e *testEnv) joinChannel(id, name, channel string) app.Member {
	member := app.Member{ID: id, Name: name}
	e.presence.MarkJoin(context.Background(), member, channel, nil)
	return member
}

func sampleQuestion() *domain.Question {
	q, err := domain.QuestionSpec{
		ID:      "q-math",
		Type:    "MULTIPLE",
		Prompt:  "What is 2 + 2?",
		Options: []domain.AnswerOption{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}, {Key: "C", Text: "5"}},
		Correct: "B",
	}.Build("general")
	if err != nil {
		panic(err)
	}
	return q
}

func openQuestion() *domain.Question {
	q, err := domain.QuestionSpec{
		ID:      "q-open",
		Type:    "OPEN",
		Prompt:  "Name the red planet.",
		Correct: "Mars",
		Aliases: []string{"the red planet"},
	}.Build("space")
	if err != nil {
		panic(err)
	}
	return q
}
