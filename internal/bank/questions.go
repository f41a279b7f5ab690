package bank

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quiz-challenge/internal/domain"
)

type questionFile struct {
	Questions []domain.BankQuestion `yaml:"questions"`
}

// ReadFile parses a YAML question bank and validates every answer key.
func ReadFile(path string) ([]domain.BankQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNoQuestions)
	}
	seen := make(map[string]struct{}, len(file.Questions))
	for _, q := range file.Questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate question id %s", path, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return file.Questions, nil
}

// SampleQuestions is the built-in bank used when no other source is configured.
func SampleQuestions() []domain.BankQuestion {
	return []domain.BankQuestion{
		{
			ID:            "q1",
			Text:          "What is 2 + 2?",
			Options:       []string{"3", "4", "5", "22"},
			CorrectAnswer: "4",
		},
		{
			ID:            "q2",
			Text:          "Which planet is the hottest in the solar system?",
			Options:       []string{"Mercury", "Venus", "Mars", "Jupiter"},
			CorrectAnswer: "Venus",
		},
		{
			ID:            "q3",
			Text:          "Which keyword starts a goroutine in Go?",
			Options:       []string{"async", "spawn", "go", "thread"},
			CorrectAnswer: "go",
		},
		{
			ID:            "q4",
			Text:          "What is the capital of France?",
			Options:       []string{"Rome", "Paris", "Berlin", "Madrid"},
			CorrectAnswer: "Paris",
		},
	}
}
