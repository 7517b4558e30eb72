package app

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"trivia-service/internal/domain"
)

// QuestionSource re-reads questions from the configured backing store.
// Used by the runtime reload control to rebuild the pool.
type QuestionSource func(ctx context.Context) ([]*domain.Question, error)

// QuestionPool is the loaded question set with simple repeat avoidance.
// A reload swaps in a whole new set; the repeat history resets with it.
type QuestionPool struct {
	avoidRepeats   bool
	repeatCooldown int

	mu         sync.Mutex
	questions  []*domain.Question
	byID       map[string]*domain.Question
	byCategory map[string][]*domain.Question
	recent     []string
	rnd        *rand.Rand
}

func NewQuestionPool(questions []*domain.Question, settings Settings, seed int64) *QuestionPool {
	pool := &QuestionPool{
		avoidRepeats:   settings.AvoidRepeats,
		repeatCooldown: settings.RepeatCooldown,
		rnd:            rand.New(rand.NewSource(seed)),
	}
	pool.index(questions)
	return pool
}

// Reload replaces every question in the pool and clears the repeat history.
func (p *QuestionPool) Reload(questions []*domain.Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index(questions)
	p.recent = nil
}

// index rebuilds the lookup maps. Callers hold p.mu except during construction.
func (p *QuestionPool) index(questions []*domain.Question) {
	p.questions = questions
	p.byID = make(map[string]*domain.Question, len(questions))
	p.byCategory = make(map[string][]*domain.Question)
	for _, question := range questions {
		p.byID[strings.ToLower(question.ID)] = question
		category := strings.ToLower(question.Category)
		p.byCategory[category] = append(p.byCategory[category], question)
	}
}

func (p *QuestionPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.questions)
}

func (p *QuestionPool) FindByID(questionID string) (*domain.Question, bool) {
	if strings.TrimSpace(questionID) == "" {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	question, ok := p.byID[strings.ToLower(questionID)]
	return question, ok
}

// PickRandom selects a question from the category (or the whole pool when
// blank), skipping recently asked ids unless that would empty the pool.
func (p *QuestionPool) PickRandom(category string) (*domain.Question, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.questions
	if strings.TrimSpace(category) != "" {
		candidates = p.byCategory[strings.ToLower(category)]
	}
	if len(candidates) == 0 {
		return nil, false
	}

	selection := candidates
	if p.avoidRepeats && p.repeatCooldown > 0 && len(candidates) > 1 {
		fresh := make([]*domain.Question, 0, len(candidates))
		for _, question := range candidates {
			if !p.isRecent(question.ID) {
				fresh = append(fresh, question)
			}
		}
		if len(fresh) > 0 {
			selection = fresh
		}
	}

	selected := selection[p.rnd.Intn(len(selection))]
	p.remember(selected.ID)
	return selected, true
}

func (p *QuestionPool) Categories() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	categories := make([]string, 0, len(p.byCategory))
	for category := range p.byCategory {
		categories = append(categories, category)
	}
	return categories
}

func (p *QuestionPool) isRecent(questionID string) bool {
	for _, recent := range p.recent {
		if recent == questionID {
			return true
		}
	}
	return false
}

func (p *QuestionPool) remember(questionID string) {
	if !p.avoidRepeats || p.repeatCooldown <= 0 {
		return
	}
	for i, recent := range p.recent {
		if recent == questionID {
			p.recent = append(p.recent[:i], p.recent[i+1:]...)
			break
		}
	}
	p.recent = append(p.recent, questionID)
	for len(p.recent) > p.repeatCooldown {
		p.recent = p.recent[1:]
	}
}
