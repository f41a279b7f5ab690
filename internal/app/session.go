package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"quiz-challenge/internal/domain"
)

// QuestionService is the remote collaborator a session depends on.
type QuestionService interface {
	FetchAllQuestions(ctx context.Context) ([]domain.Question, error)
	SubmitAnswers(ctx context.Context, answers []domain.Answer) (domain.ScoreResult, error)
}

// Phase is the controller state.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseReady      Phase = "ready"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// User-facing messages for the single error slot.
const (
	MsgLoadFailed   = "Failed to load questions. Please try again."
	MsgIncomplete   = "Please answer all questions before submitting."
	MsgSubmitFailed = "Failed to submit answers. Please try again."
)

var (
	// ErrBusy is returned when the same network operation is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrStale is returned when a response arrived after a retake superseded it.
	ErrStale = errors.New("response superseded by retake")
	// ErrNotReady is returned when submitting without a question set.
	ErrNotReady = errors.New("no questions loaded")
	// ErrCompleted is returned when reloading a quiz that already has a result.
	ErrCompleted = errors.New("quiz completed, retake to start over")
	// ErrUnknownQuestion is returned when selecting for a question not in the set.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrUnknownOption is returned when selecting an option the question does not offer.
	ErrUnknownOption = errors.New("unknown option")
)

// Session is the state of one quiz attempt. Each session owns its state; the
// mutex is never held across a call to the question service.
type Session struct {
	id      string
	service QuestionService
	log     *slog.Logger

	mu         sync.Mutex
	phase      Phase
	generation uint64
	loading    bool
	submitting bool
	questions  []domain.Question
	selections map[string]string
	result     *domain.ScoreResult
	errMsg     string

	onChange func()
}

type SessionOption func(*Session)

// WithID tags log lines with a session id.
func WithID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithOnChange registers fn to run after every state change, outside the
// session lock. It may be called from the goroutine running Load or Submit.
func WithOnChange(fn func()) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// NewSession returns a session in the loading phase with nothing in flight.
// Call Load to fetch the first question set.
func NewSession(service QuestionService, opts ...SessionOption) *Session {
	s := &Session{
		service:    service,
		phase:      PhaseLoading,
		selections: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.id != "" {
		s.log = s.log.With("session", s.id)
	}
	return s
}

// ID returns the session id given at construction.
func (s *Session) ID() string {
	return s.id
}

// Load fetches the question set. On failure the session enters the error
// phase with an empty question list; there is no automatic retry. Once a
// result exists only Retake starts over.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.submitting {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.result != nil {
		s.mu.Unlock()
		return ErrCompleted
	}
	gen := s.beginLoadLocked()
	s.mu.Unlock()
	s.changed()

	return s.fetch(ctx, gen)
}

// Retake discards selections, result and error and fetches a fresh question
// set. Any response still in flight for the previous attempt is ignored.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.result = nil
	s.errMsg = ""
	s.submitting = false
	gen := s.beginLoadLocked()
	s.mu.Unlock()
	s.changed()

	s.log.Info("quiz retake", "generation", gen)
	return s.fetch(ctx, gen)
}

func (s *Session) beginLoadLocked() uint64 {
	s.loading = true
	s.phase = PhaseLoading
	s.errMsg = ""
	s.questions = nil
	s.selections = make(map[string]string)
	return s.generation
}

func (s *Session) fetch(ctx context.Context, gen uint64) error {
	questions, err := s.service.FetchAllQuestions(ctx)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.log.Debug("discarding stale question set", "generation", gen)
		return ErrStale
	}
	s.loading = false
	if err != nil {
		s.phase = PhaseError
		s.questions = nil
		s.errMsg = MsgLoadFailed
		s.mu.Unlock()
		s.changed()
		s.log.Error("load questions failed", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}

	s.questions = questions
	s.selections = make(map[string]string)
	s.result = nil
	s.phase = PhaseReady
	s.mu.Unlock()
	s.changed()
	s.log.Info("questions loaded", "count", len(questions))
	return nil
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Select records option as the answer for questionID, replacing any prior
// choice. Answers are locked while submitting and once a result exists; in
// those phases Select does nothing.
func (s *Session) Select(questionID, option string) error {
	s.mu.Lock()
	if s.result != nil || s.phase == PhaseCompleted || s.submitting {
		s.mu.Unlock()
		return nil
	}
	q, ok := s.questionLocked(questionID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if !q.HasOption(option) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q for question %s", ErrUnknownOption, option, questionID)
	}
	prev, had := s.selections[questionID]
	s.selections[questionID] = option
	s.mu.Unlock()

	if !had || prev != option {
		s.changed()
	}
	return nil
}

// Submit sends the selections for scoring. It fails fast, without a network
// call, unless every question has a selection. A failed submission keeps the
// selections so the user can resubmit.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.result != nil || s.loading || len(s.questions) == 0 {
		s.mu.Unlock()
		return ErrNotReady
	}
	if len(s.selections) != len(s.questions) {
		s.errMsg = MsgIncomplete
		answered, total := len(s.selections), len(s.questions)
		s.mu.Unlock()
		s.changed()
		return fmt.Errorf("%w: %d of %d answered", domain.ErrValidation, answered, total)
	}

	answers := make([]domain.Answer, 0, len(s.questions))
	for _, q := range s.questions {
		answers = append(answers, domain.Answer{QuestionID: q.ID, SelectedOption: s.selections[q.ID]})
	}
	s.submitting = true
	s.phase = PhaseSubmitting
	s.errMsg = ""
	gen := s.generation
	s.mu.Unlock()
	s.changed()

	result, err := s.service.SubmitAnswers(ctx, answers)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.log.Debug("discarding stale score", "generation", gen)
		return ErrStale
	}
	s.submitting = false
	if err != nil {
		s.phase = PhaseError
		s.errMsg = MsgSubmitFailed
		s.mu.Unlock()
		s.changed()
		s.log.Error("submit answers failed", "error", err, "answers", len(answers))
		return fmt.Errorf("%w: %w", domain.ErrSubmit, err)
	}

	s.result = &result
	s.phase = PhaseCompleted
	s.mu.Unlock()
	s.changed()
	s.log.Info("quiz completed", "score", result.Score, "total", result.TotalQuestions)
	return nil
}

func (s *Session) questionLocked(questionID string) (domain.Question, bool) {
	for _, q := range s.questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}
