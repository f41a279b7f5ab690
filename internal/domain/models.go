package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Question models a multiple-choice item as served by the question service.
// The correct answer is never part of it.
type Question struct {
	ID      string   `json:"_id"`
	Text    string   `json:"questionText"`
	Options []string `json:"options"`
}

// UnmarshalJSON accepts both the upstream field names (_id, questionText)
// and the plain ones (id, text).
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID      string   `json:"_id"`
		ID           string   `json:"id"`
		QuestionText string   `json:"questionText"`
		Text         string   `json:"text"`
		Options      []string `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.ID = raw.MongoID
	if q.ID == "" {
		q.ID = raw.ID
	}
	q.Text = raw.QuestionText
	if q.Text == "" {
		q.Text = raw.Text
	}
	q.Options = raw.Options
	return nil
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// ValidateQuestions checks a fetched question set: at least one question,
// unique non-empty ids, and options on every question.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return fmt.Errorf("question %d has no id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s has no options", q.ID)
		}
	}
	return nil
}

// Answer is a single selection sent for scoring.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

// QuestionResult is the per-question outcome returned by the scoring call.
type QuestionResult struct {
	QuestionID     string   `json:"questionId"`
	QuestionText   string   `json:"questionText"`
	Options        []string `json:"options"`
	SelectedOption string   `json:"selectedOption"`
	CorrectAnswer  string   `json:"correctAnswer"`
	IsCorrect      bool     `json:"isCorrect"`
}

// ScoreResult is the authoritative outcome of a submitted answer set.
type ScoreResult struct {
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	Percentage     float64          `json:"percentage"`
	Details        []QuestionResult `json:"details"`
}

// percentageTolerance bounds rounding differences between services.
const percentageTolerance = 0.01

// NewScoreResult derives the aggregate fields from details.
func NewScoreResult(details []QuestionResult) ScoreResult {
	score := 0
	for _, d := range details {
		if d.IsCorrect {
			score++
		}
	}
	return ScoreResult{
		Score:          score,
		TotalQuestions: len(details),
		Percentage:     Percentage(score, len(details)),
		Details:        details,
	}
}

// Percentage returns 100*score/total, or 0 for an empty quiz.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(score) / float64(total)
}

// Validate checks the aggregate fields against the details.
func (r ScoreResult) Validate() error {
	if err := r.CheckBounds(); err != nil {
		return err
	}
	correct := 0
	for _, d := range r.Details {
		if d.IsCorrect {
			correct++
		}
	}
	if correct != r.Score {
		return fmt.Errorf("score %d does not match %d correct details", r.Score, correct)
	}
	if want := Percentage(r.Score, r.TotalQuestions); math.Abs(want-r.Percentage) > percentageTolerance {
		return fmt.Errorf("percentage %.2f does not match %d/%d", r.Percentage, r.Score, r.TotalQuestions)
	}
	return nil
}

// CheckBounds rejects results no scoring could produce: negative counts,
// a score above the total, or a percentage outside [0, 100].
func (r ScoreResult) CheckBounds() error {
	if r.Score < 0 || r.TotalQuestions < 0 {
		return fmt.Errorf("negative score %d/%d", r.Score, r.TotalQuestions)
	}
	if r.Score > r.TotalQuestions {
		return fmt.Errorf("score %d exceeds total %d", r.Score, r.TotalQuestions)
	}
	if r.Percentage < 0 || r.Percentage > 100 {
		return fmt.Errorf("percentage %.2f out of range", r.Percentage)
	}
	return nil
}

// Detail returns the result for questionID, if any.
func (r ScoreResult) Detail(questionID string) (QuestionResult, bool) {
	for _, d := range r.Details {
		if d.QuestionID == questionID {
			return d, true
		}
	}
	return QuestionResult{}, false
}

// BankQuestion is a question together with its answer key. Only the
// reference question service handles it.
type BankQuestion struct {
	ID            string   `json:"id" yaml:"id"`
	Text          string   `json:"text" yaml:"text"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correctAnswer"`
}

// Public strips the answer key.
func (b BankQuestion) Public() Question {
	options := make([]string, len(b.Options))
	copy(options, b.Options)
	return Question{ID: b.ID, Text: b.Text, Options: options}
}

// Validate checks that the question is answerable.
func (b BankQuestion) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("question without id")
	}
	if len(b.Options) == 0 {
		return fmt.Errorf("question %s has no options", b.ID)
	}
	if !b.Public().HasOption(b.CorrectAnswer) {
		return fmt.Errorf("question %s: correct answer %q is not an option", b.ID, b.CorrectAnswer)
	}
	return nil
}
