package app_test

import (
	"testing"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

func poolQuestions(t *testing.T) []*domain.Question {
	t.Helper()
	specs := []struct {
		id       string
		category string
	}{
		{"geo-1", "geo"},
		{"geo-2", "geo"},
		{"math-1", "math"},
		{"math-2", "math"},
	}
	questions := make([]*domain.Question, 0, len(specs))
	for _, s := range specs {
		q, err := domain.QuestionSpec{
			ID:      s.id,
			Type:    "TRUE_FALSE",
			Prompt:  "prompt " + s.id,
			Correct: "A",
		}.Build(s.category)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		questions = append(questions, q)
	}
	return questions
}

func TestFindByID(t *testing.T) {
	pool := app.NewQuestionPool(poolQuestions(t), defaultSettings(), 1)

	if _, ok := pool.FindByID("GEO-1"); !ok {
		t.Fatalf("lookup must be case-insensitive")
	}
	if _, ok := pool.FindByID("  "); ok {
		t.Fatalf("blank id must not resolve")
	}
	if _, ok := pool.FindByID("missing"); ok {
		t.Fatalf("unknown id must not resolve")
	}
}

func TestPickRandomByCategory(t *testing.T) {
	pool := app.NewQuestionPool(poolQuestions(t), defaultSettings(), 1)

	for i := 0; i < 10; i++ {
		q, ok := pool.PickRandom("MATH")
		if !ok {
			t.Fatalf("expected a math question")
		}
		if q.Category != "math" {
			t.Fatalf("expected math category, got %q", q.Category)
		}
	}
	if _, ok := pool.PickRandom("history"); ok {
		t.Fatalf("unknown category must yield nothing")
	}
}

func TestPickRandomAvoidsRecentQuestions(t *testing.T) {
	settings := defaultSettings()
	settings.AvoidRepeats = true
	settings.RepeatCooldown = 2
	pool := app.NewQuestionPool(poolQuestions(t), settings, 7)

	prev := ""
	for i := 0; i < 30; i++ {
		q, ok := pool.PickRandom("")
		if !ok {
			t.Fatalf("pick failed")
		}
		if q.ID == prev {
			t.Fatalf("question %q repeated back to back", q.ID)
		}
		prev = q.ID
	}
}

func TestPickRandomFallsBackWhenPoolExhausted(t *testing.T) {
	settings := defaultSettings()
	settings.AvoidRepeats = true
	settings.RepeatCooldown = 10 // larger than the pool
	pool := app.NewQuestionPool(poolQuestions(t), settings, 3)

	for i := 0; i < 20; i++ {
		if _, ok := pool.PickRandom(""); !ok {
			t.Fatalf("repeat avoidance must never starve the pool")
		}
	}
}

func TestReloadSwapsQuestionSet(t *testing.T) {
	settings := defaultSettings()
	settings.AvoidRepeats = true
	settings.RepeatCooldown = 2
	pool := app.NewQuestionPool(poolQuestions(t), settings, 1)

	// Populate the repeat history before swapping.
	pool.PickRandom("")
	pool.PickRandom("")

	replacement, err := domain.QuestionSpec{
		ID:      "sci-1",
		Type:    "TRUE_FALSE",
		Prompt:  "Water boils at 100C at sea level.",
		Correct: "A",
	}.Build("science")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	pool.Reload([]*domain.Question{replacement})

	if pool.Size() != 1 {
		t.Fatalf("expected 1 question after reload, got %d", pool.Size())
	}
	if _, ok := pool.FindByID("geo-1"); ok {
		t.Fatalf("old questions must be gone after reload")
	}
	if _, ok := pool.FindByID("SCI-1"); !ok {
		t.Fatalf("reloaded question must resolve")
	}
	q, ok := pool.PickRandom("science")
	if !ok || q.ID != "sci-1" {
		t.Fatalf("expected sci-1 from the new pool, got %v", q)
	}
	// The cleared history must not block the only remaining question.
	if _, ok := pool.PickRandom(""); !ok {
		t.Fatalf("single-question pool must still yield after reload")
	}
}

func TestEmptyPool(t *testing.T) {
	pool := app.NewQuestionPool(nil, defaultSettings(), 1)
	if pool.Size() != 0 {
		t.Fatalf("expected empty pool")
	}
	if _, ok := pool.PickRandom(""); ok {
		t.Fatalf("empty pool must yield nothing")
	}
}
