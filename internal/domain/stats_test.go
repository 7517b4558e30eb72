package domain_test

import (
	"testing"
	"time"

	"trivia-service/internal/domain"
)

func TestRecordResultStreaks(t *testing.T) {
	stats := domain.NewPlayerStats("p1", "Alice")

	stats.RecordResult("Alice", true, 1200*time.Millisecond)
	stats.RecordResult("Alice", true, 800*time.Millisecond)
	stats.RecordResult("Alice", false, 500*time.Millisecond)
	stats.RecordResult("Alice", true, 700*time.Millisecond)

	if stats.Plays != 4 || stats.TotalAnswers != 4 {
		t.Fatalf("expected 4 plays, got plays=%d answers=%d", stats.Plays, stats.TotalAnswers)
	}
	if stats.Wins != 3 || stats.Losses != 1 {
		t.Fatalf("expected 3 wins 1 loss, got %d/%d", stats.Wins, stats.Losses)
	}
	if stats.CurrentStreak != 1 {
		t.Fatalf("expected streak reset then 1, got %d", stats.CurrentStreak)
	}
	if stats.BestStreak != 2 {
		t.Fatalf("expected best streak 2, got %d", stats.BestStreak)
	}
	if stats.TotalResponseMs != 3200 {
		t.Fatalf("expected 3200ms total, got %d", stats.TotalResponseMs)
	}
	if got := stats.AverageResponseMs(); got != 800 {
		t.Fatalf("expected average 800ms, got %v", got)
	}
}

func TestRecordResultIgnoresNegativeResponseTime(t *testing.T) {
	stats := domain.NewPlayerStats("p1", "Alice")
	stats.RecordResult("Alice", false, -time.Second)
	if stats.TotalResponseMs != 0 {
		t.Fatalf("negative response time must not be accumulated, got %d", stats.TotalResponseMs)
	}
	if stats.Plays != 1 {
		t.Fatalf("play must still count, got %d", stats.Plays)
	}
}

func TestRecordResultUpdatesName(t *testing.T) {
	stats := domain.NewPlayerStats("p1", "OldName")
	stats.RecordResult("NewName", true, time.Second)
	if stats.LastKnownName != "NewName" {
		t.Fatalf("expected name refresh, got %q", stats.LastKnownName)
	}
	stats.RecordResult("", false, time.Second)
	if stats.LastKnownName != "NewName" {
		t.Fatalf("blank name must not overwrite, got %q", stats.LastKnownName)
	}
}

func TestNewPlayerStatsFallbackName(t *testing.T) {
	stats := domain.NewPlayerStats("p1", "   ")
	if stats.LastKnownName != "Unknown" {
		t.Fatalf("expected Unknown fallback, got %q", stats.LastKnownName)
	}
}

func TestParseMetric(t *testing.T) {
	if domain.ParseMetric("streak") != domain.MetricStreak {
		t.Fatalf("expected streak metric")
	}
	if domain.ParseMetric(" STREAK ") != domain.MetricStreak {
		t.Fatalf("expected case-insensitive streak metric")
	}
	if domain.ParseMetric("wins") != domain.MetricWins {
		t.Fatalf("expected wins metric")
	}
	if domain.ParseMetric("bogus") != domain.MetricWins {
		t.Fatalf("expected default to wins")
	}
}
