// Package memory holds the in-process fallbacks used when Redis or
// Postgres are not configured.
package memory

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"trivia-service/internal/domain"
)

// LoadQuestionFile parses a yaml question file keyed category -> question
// list. Invalid entries are skipped with a warning.
func LoadQuestionFile(path string, log *zap.Logger) ([]*domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	return ParseQuestionYAML(data, log)
}

// ParseQuestionYAML decodes question yaml content.
func ParseQuestionYAML(data []byte, log *zap.Logger) ([]*domain.Question, error) {
	var byCategory map[string][]domain.QuestionSpec
	if err := yaml.Unmarshal(data, &byCategory); err != nil {
		return nil, fmt.Errorf("parse question file: %w", err)
	}

	var questions []*domain.Question
	for category, specs := range byCategory {
		for _, spec := range specs {
			question, err := spec.Build(category)
			if err != nil {
				log.Warn("skipped invalid question", zap.Error(err))
				continue
			}
			questions = append(questions, question)
		}
	}
	return questions, nil
}

// SampleQuestions provides a minimal demo set used when no question source
// is configured.
func SampleQuestions() []*domain.Question {
	specs := map[string][]domain.QuestionSpec{
		"general": {
			{
				ID:     "sample-1",
				Type:   "MULTIPLE",
				Prompt: "What is 2 + 2?",
				Options: []domain.AnswerOption{
					{Key: "A", Text: "3"},
					{Key: "B", Text: "4"},
					{Key: "C", Text: "5"},
				},
				Correct: "B",
			},
			{
				ID:      "sample-2",
				Type:    "TRUE_FALSE",
				Prompt:  "The sky is blue.",
				Correct: "A",
			},
			{
				ID:      "sample-3",
				Type:    "OPEN",
				Prompt:  "Which planet is known as the red planet?",
				Correct: "Mars",
				Aliases: []string{"planet mars"},
			},
		},
	}

	var questions []*domain.Question
	for category, list := range specs {
		for _, spec := range list {
			question, err := spec.Build(category)
			if err != nil {
				continue
			}
			questions = append(questions, question)
		}
	}
	return questions
}
