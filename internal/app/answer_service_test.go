package app_test

import (
	"context"
	"testing"
	"time"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

func startedRound(t *testing.T, env *testEnv, question *domain.Question) int64 {
	t.Helper()
	if err := env.rounds.StartRound(context.Background(), question, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return env.rounds.Active().ID
}

func lastTell(env *testEnv, target string) string {
	keys := env.messenger.tellKeys(target)
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

func TestSubmitWithoutRound(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")

	if err := env.answers.Submit(context.Background(), alice, 1, "B"); err != domain.ErrInvalidRound {
		t.Fatalf("expected invalid-round error, got %v", err)
	}
	if lastTell(env, "u1") != "errors.invalid-round" {
		t.Fatalf("expected invalid-round notice, got %v", env.messenger.tellKeys("u1"))
	}
}

func TestSubmitWrongRoundID(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())

	if err := env.answers.Submit(context.Background(), alice, roundID+10, "B"); err != domain.ErrInvalidRound {
		t.Fatalf("expected invalid-round error, got %v", err)
	}
}

func TestSubmitIneligibleIsSilent(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())

	// Joined after the snapshot was frozen.
	late := env.join("u2", "Bob")
	if err := env.answers.Submit(context.Background(), late, roundID, "B"); err != domain.ErrNotEligible {
		t.Fatalf("expected not-eligible error, got %v", err)
	}
	if keys := env.messenger.tellKeys("u2"); len(keys) != 0 {
		t.Fatalf("outsider must get no feedback, got %v", keys)
	}
}

func TestSubmitCooldown(t *testing.T) {
	settings := defaultSettings()
	settings.AnswerCooldown = 500 * time.Millisecond
	env := newTestEnv(settings, nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())
	ctx := context.Background()

	if err := env.answers.Submit(ctx, alice, roundID, "C"); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if err := env.answers.Submit(ctx, alice, roundID, "B"); err != domain.ErrCooldownActive {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	if lastTell(env, "u1") != "errors.cooldown" {
		t.Fatalf("expected cooldown notice, got %v", env.messenger.tellKeys("u1"))
	}
}

func TestSubmitDuplicate(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())
	ctx := context.Background()

	if err := env.answers.Submit(ctx, alice, roundID, "A"); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if err := env.answers.Submit(ctx, alice, roundID, "B"); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected already-answered error, got %v", err)
	}
}

func TestSubmitTooFast(t *testing.T) {
	settings := defaultSettings()
	settings.MinHumanResponse = 10 * time.Second
	env := newTestEnv(settings, nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())

	if err := env.answers.Submit(context.Background(), alice, roundID, "B"); err != domain.ErrTooFast {
		t.Fatalf("expected too-fast rejection, got %v", err)
	}
	if lastTell(env, "u1") != "errors.too-fast" {
		t.Fatalf("expected too-fast notice, got %v", env.messenger.tellKeys("u1"))
	}
}

func TestSubmitBlankAndUnknownOption(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())
	ctx := context.Background()

	if err := env.answers.Submit(ctx, alice, roundID, "   "); err != domain.ErrInvalidOption {
		t.Fatalf("expected invalid-option on blank input, got %v", err)
	}
	if err := env.answers.Submit(ctx, alice, roundID, "Z"); err != domain.ErrInvalidOption {
		t.Fatalf("expected invalid-option on unknown key, got %v", err)
	}
	// Rejections never consume the player's single answer slot.
	if err := env.answers.Submit(ctx, alice, roundID, "B"); err != nil {
		t.Fatalf("valid submit after rejections failed: %v", err)
	}
}

func TestSubmitFeedback(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	bob := env.join("u2", "Bob")
	roundID := startedRound(t, env, sampleQuestion())
	ctx := context.Background()

	if err := env.answers.Submit(ctx, alice, roundID, "B"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if lastTell(env, "u1") != "feedback.correct" {
		t.Fatalf("expected correct feedback, got %v", env.messenger.tellKeys("u1"))
	}

	if err := env.answers.Submit(ctx, bob, roundID, "A"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if lastTell(env, "u2") != "feedback.incorrect" {
		t.Fatalf("expected incorrect feedback, got %v", env.messenger.tellKeys("u2"))
	}
}

func TestSubmitOpenQuestionNoReveal(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	bob := env.join("u2", "Bob")
	roundID := startedRound(t, env, openQuestion())
	ctx := context.Background()

	if err := env.answers.Submit(ctx, alice, roundID, "mars"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if lastTell(env, "u1") != "feedback.accepted-open" {
		t.Fatalf("expected neutral acknowledgement, got %v", env.messenger.tellKeys("u1"))
	}

	// Wrong open answers are accepted too; judgment waits for the summary.
	if err := env.answers.Submit(ctx, bob, roundID, "venus"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if lastTell(env, "u2") != "feedback.accepted-open" {
		t.Fatalf("expected neutral acknowledgement, got %v", env.messenger.tellKeys("u2"))
	}
}

func TestShouldCapture(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	startedRound(t, env, sampleQuestion())

	if !env.answers.ShouldCapture(alice, "!B") {
		t.Fatalf("prefixed message must be captured")
	}
	if env.answers.ShouldCapture(alice, "!") {
		t.Fatalf("bare prefix must pass through")
	}
	if env.answers.ShouldCapture(alice, "hello everyone") {
		t.Fatalf("ordinary chat must pass through")
	}
	outsider := app.Member{ID: "u9", Name: "Eve"}
	if env.answers.ShouldCapture(outsider, "!B") {
		t.Fatalf("non-participant chat must pass through")
	}
}

func TestShouldCaptureWithoutPrefix(t *testing.T) {
	settings := defaultSettings()
	settings.ChatPrefix = ""
	env := newTestEnv(settings, nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	startedRound(t, env, sampleQuestion())

	if !env.answers.ShouldCapture(alice, "B") {
		t.Fatalf("option key must be captured without a prefix")
	}
	if !env.answers.ShouldCapture(alice, "  4 ") {
		t.Fatalf("option label must be captured without a prefix")
	}
	if env.answers.ShouldCapture(alice, "what was the question?") {
		t.Fatalf("non-option chat must pass through")
	}
}

func TestShouldCaptureOpenNeedsPrefix(t *testing.T) {
	settings := defaultSettings()
	settings.ChatPrefix = ""
	env := newTestEnv(settings, nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	startedRound(t, env, openQuestion())

	if env.answers.ShouldCapture(alice, "Mars") {
		t.Fatalf("open questions must not capture bare chat")
	}
}

func TestShouldCaptureDisabled(t *testing.T) {
	settings := defaultSettings()
	settings.AllowChatAnswers = false
	env := newTestEnv(settings, nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	startedRound(t, env, sampleQuestion())

	if env.answers.ShouldCapture(alice, "!B") {
		t.Fatalf("capture must be off when chat answers are disabled")
	}
}

func TestExtractChatAnswer(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()

	if got := env.answers.ExtractChatAnswer("  !B "); got != "B" {
		t.Fatalf("expected stripped answer, got %q", got)
	}
	if got := env.answers.ExtractChatAnswer("!  mars  "); got != "mars" {
		t.Fatalf("expected trimmed open answer, got %q", got)
	}
}

func TestSubmitChatRoutesToActiveRound(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	startedRound(t, env, sampleQuestion())

	if err := env.answers.SubmitChat(context.Background(), alice, "B"); err != nil {
		t.Fatalf("chat submit failed: %v", err)
	}
	if lastTell(env, "u1") != "feedback.correct" {
		t.Fatalf("expected correct feedback, got %v", env.messenger.tellKeys("u1"))
	}
}

func TestSubmitAfterClose(t *testing.T) {
	env := newTestEnv(defaultSettings(), nil)
	defer env.close()
	alice := env.join("u1", "Alice")
	roundID := startedRound(t, env, sampleQuestion())

	env.rounds.FinishRound(false)
	if err := env.answers.Submit(context.Background(), alice, roundID, "B"); err != domain.ErrInvalidRound {
		t.Fatalf("expected invalid-round after close, got %v", err)
	}
}
