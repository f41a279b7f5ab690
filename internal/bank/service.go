package bank

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quiz-challenge/internal/domain"
)

// QuestionRepository loads the question bank, answer keys included.
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]domain.BankQuestion, error)
}

// Service is the reference implementation of the question service contract:
// it hands out questions without answers and scores submissions against the key.
type Service struct {
	repo   QuestionRepository
	sample int

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Service)

// WithSample serves a random subset of n questions per fetch, modelling a
// service that rotates questions. n <= 0 serves the whole bank.
func WithSample(n int) Option {
	return func(s *Service) { s.sample = n }
}

// WithRand fixes the random source, for deterministic tests.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Service) { s.rnd = rnd }
}

func NewService(repo QuestionRepository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Questions returns the public question set, in bank order.
func (s *Service) Questions(ctx context.Context) ([]domain.Question, error) {
	bank, err := s.repo.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrNoQuestions
	}

	picked := bank
	if s.sample > 0 && s.sample < len(bank) {
		picked = s.pick(bank)
	}
	out := make([]domain.Question, 0, len(picked))
	for _, q := range picked {
		out = append(out, q.Public())
	}
	return out, nil
}

// pick chooses s.sample questions and keeps their bank order.
func (s *Service) pick(bank []domain.BankQuestion) []domain.BankQuestion {
	s.mu.Lock()
	idx := s.rnd.Perm(len(bank))[:s.sample]
	s.mu.Unlock()

	chosen := make([]bool, len(bank))
	for _, i := range idx {
		chosen[i] = true
	}
	out := make([]domain.BankQuestion, 0, s.sample)
	for i, q := range bank {
		if chosen[i] {
			out = append(out, q)
		}
	}
	return out
}

// Score grades answers. Details follow submission order, one per answer.
func (s *Service) Score(ctx context.Context, answers []domain.Answer) (domain.ScoreResult, error) {
	bank, err := s.repo.ListQuestions(ctx)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	byID := make(map[string]domain.BankQuestion, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}

	seen := make(map[string]struct{}, len(answers))
	details := make([]domain.QuestionResult, 0, len(answers))
	for _, answer := range answers {
		if _, dup := seen[answer.QuestionID]; dup {
			return domain.ScoreResult{}, fmt.Errorf("%w: %s", domain.ErrDuplicateAnswer, answer.QuestionID)
		}
		seen[answer.QuestionID] = struct{}{}

		detail, err := scoreAnswer(byID, answer)
		if err != nil {
			return domain.ScoreResult{}, err
		}
		details = append(details, detail)
	}
	return domain.NewScoreResult(details), nil
}

func scoreAnswer(bank map[string]domain.BankQuestion, answer domain.Answer) (domain.QuestionResult, error) {
	question, ok := bank[answer.QuestionID]
	if !ok {
		return domain.QuestionResult{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, answer.QuestionID)
	}
	public := question.Public()
	if !public.HasOption(answer.SelectedOption) {
		return domain.QuestionResult{}, fmt.Errorf("%w: %q for question %s", domain.ErrOptionNotFound, answer.SelectedOption, answer.QuestionID)
	}
	return domain.QuestionResult{
		QuestionID:     question.ID,
		QuestionText:   question.Text,
		Options:        public.Options,
		SelectedOption: answer.SelectedOption,
		CorrectAnswer:  question.CorrectAnswer,
		IsCorrect:      answer.SelectedOption == question.CorrectAnswer,
	}, nil
}
