package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"trivia-service/internal/domain"
)

// QuestionLoader reads question sets from the question_sets JSONB table.
type QuestionLoader struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewQuestionLoader(pool *pgxpool.Pool, log *zap.Logger) *QuestionLoader {
	return &QuestionLoader{pool: pool, log: log}
}

// LoadQuestions decodes every category row. Invalid entries are skipped
// with a warning instead of failing the whole load.
func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]*domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT category, data FROM question_sets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("load question sets: %w", err)
	}
	defer rows.Close()

	var questions []*domain.Question
	for rows.Next() {
		var category string
		var raw []byte
		if err := rows.Scan(&category, &raw); err != nil {
			return nil, fmt.Errorf("scan question set: %w", err)
		}

		var specs []domain.QuestionSpec
		if err := json.Unmarshal(raw, &specs); err != nil {
			return nil, fmt.Errorf("unmarshal question set %q: %w", category, err)
		}
		for _, spec := range specs {
			question, err := spec.Build(category)
			if err != nil {
				l.log.Warn("skipped invalid question", zap.Error(err))
				continue
			}
			questions = append(questions, question)
		}
	}
	return questions, rows.Err()
}
