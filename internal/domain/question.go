package domain

import "strings"

// QuestionKind distinguishes how answers are resolved and judged.
type QuestionKind string

const (
	KindMultiple  QuestionKind = "MULTIPLE"
	KindTrueFalse QuestionKind = "TRUE_FALSE"
	KindOpen      QuestionKind = "OPEN"
)

// ParseKind maps raw config input to a QuestionKind.
func ParseKind(raw string) (QuestionKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MULTIPLE", "":
		return KindMultiple, true
	case "TRUE_FALSE":
		return KindTrueFalse, true
	case "OPEN":
		return KindOpen, true
	}
	return "", false
}

// AnswerOption is a single selectable answer for closed-form questions.
type AnswerOption struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// Question is immutable once loaded; rounds share the same instance.
type Question struct {
	Category        string
	ID              string
	Kind            QuestionKind
	Prompt          string
	Options         []AnswerOption // insertion order preserved
	Correct         string         // option key, or the canonical open answer
	AcceptedAnswers []string       // normalized, open-form only
	RewardProfile   string
	RewardOverrides RewardDefinition
}

// ResolveOptionKey maps raw input to an option key by exact key match or
// by matching the normalized option label. Open questions never resolve.
func (q *Question) ResolveOptionKey(raw string) (string, bool) {
	if q.Kind == KindOpen {
		return "", false
	}
	normalized := NormalizeAnswer(raw)
	for _, option := range q.Options {
		if strings.EqualFold(option.Key, normalized) || NormalizeAnswer(option.Text) == normalized {
			return option.Key, true
		}
	}
	return "", false
}

// IsCorrect judges raw input: closed-form by resolved key, open-form by
// membership in the accepted-answer set.
func (q *Question) IsCorrect(raw string) bool {
	if q.Kind == KindOpen {
		normalized := NormalizeAnswer(raw)
		for _, accepted := range q.AcceptedAnswers {
			if accepted == normalized {
				return true
			}
		}
		return false
	}
	key, ok := q.ResolveOptionKey(raw)
	return ok && strings.EqualFold(key, q.Correct)
}

// CorrectAnswerDisplay returns the reveal text for round summaries.
func (q *Question) CorrectAnswerDisplay() string {
	if q.Kind == KindOpen {
		return q.Correct
	}
	for _, option := range q.Options {
		if strings.EqualFold(option.Key, q.Correct) {
			return option.Key + " - " + option.Text
		}
	}
	return q.Correct
}

// DisplayFor renders the submitted input for feedback messages.
func (q *Question) DisplayFor(raw string) string {
	if q.Kind == KindOpen {
		return raw
	}
	key, ok := q.ResolveOptionKey(raw)
	if !ok {
		return raw
	}
	for _, option := range q.Options {
		if strings.EqualFold(option.Key, key) {
			return option.Key + " - " + option.Text
		}
	}
	return key
}

// RewardDefinition bundles what a winner receives. Zero value means
// "nothing configured".
type RewardDefinition struct {
	Money    float64  `yaml:"money"`
	XP       int      `yaml:"xp"`
	Commands []string `yaml:"commands"`
}

// IsEmpty reports whether no reward is configured at all.
func (r RewardDefinition) IsEmpty() bool {
	return r.Money == 0 && r.XP == 0 && len(r.Commands) == 0
}

// Merge overlays non-zero fields of the override onto the base profile.
// Command lists are appended rather than replaced.
func (r RewardDefinition) Merge(override RewardDefinition) RewardDefinition {
	merged := r
	if override.Money != 0 {
		merged.Money = override.Money
	}
	if override.XP != 0 {
		merged.XP = override.XP
	}
	if len(override.Commands) > 0 {
		merged.Commands = append(append([]string{}, r.Commands...), override.Commands...)
	}
	return merged
}
