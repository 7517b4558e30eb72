package domain

import (
	"fmt"
	"strings"
)

// QuestionSpec is the serialized form of a question as it appears in the
// yaml question file or the question_sets JSONB column.
type QuestionSpec struct {
	ID            string            `json:"id" yaml:"id"`
	Type          string            `json:"type" yaml:"type"`
	Prompt        string            `json:"question" yaml:"question"`
	Options       []AnswerOption    `json:"options" yaml:"options"`
	Correct       string            `json:"correct" yaml:"correct"`
	Aliases       []string          `json:"aliases" yaml:"aliases"`
	RewardProfile string            `json:"reward-profile" yaml:"reward-profile"`
	Rewards       *RewardDefinition `json:"rewards" yaml:"rewards"`
}

// Build validates the spec and produces an immutable Question.
func (spec QuestionSpec) Build(category string) (*Question, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return nil, fmt.Errorf("question without a stable id in category %q", category)
	}

	kind, ok := ParseKind(spec.Type)
	if !ok {
		return nil, fmt.Errorf("question %s: invalid type %q", id, spec.Type)
	}

	prompt := strings.TrimSpace(spec.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("question %s: empty prompt", id)
	}

	correct := strings.TrimSpace(spec.Correct)
	if correct == "" {
		return nil, fmt.Errorf("question %s: empty correct answer", id)
	}

	options := make([]AnswerOption, 0, len(spec.Options))
	for _, option := range spec.Options {
		key := strings.ToUpper(strings.TrimSpace(option.Key))
		text := strings.TrimSpace(option.Text)
		if key == "" || text == "" {
			continue
		}
		options = append(options, AnswerOption{Key: key, Text: text})
	}
	if kind == KindTrueFalse && len(options) == 0 {
		options = []AnswerOption{{Key: "A", Text: "True"}, {Key: "B", Text: "False"}}
	}

	if kind != KindOpen {
		found := false
		for _, option := range options {
			if strings.EqualFold(option.Key, correct) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("question %s: correct option %q does not exist", id, correct)
		}
	}

	accepted := []string{NormalizeAnswer(correct)}
	for _, alias := range spec.Aliases {
		normalized := NormalizeAnswer(alias)
		if normalized != "" {
			accepted = append(accepted, normalized)
		}
	}

	profile := strings.ToLower(strings.TrimSpace(spec.RewardProfile))
	if profile == "" {
		profile = "default"
	}

	var overrides RewardDefinition
	if spec.Rewards != nil {
		overrides = *spec.Rewards
	}

	return &Question{
		Category:        category,
		ID:              id,
		Kind:            kind,
		Prompt:          prompt,
		Options:         options,
		Correct:         correct,
		AcceptedAnswers: accepted,
		RewardProfile:   profile,
		RewardOverrides: overrides,
	}, nil
}
