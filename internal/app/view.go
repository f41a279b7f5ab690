package app

import "quiz-challenge/internal/domain"

// OptionState classifies how an option is rendered.
type OptionState string

const (
	OptionNeutral   OptionState = "neutral"
	OptionSelected  OptionState = "selected"
	OptionCorrect   OptionState = "correct"
	OptionIncorrect OptionState = "incorrect"
	OptionDimmed    OptionState = "dimmed"
)

// View is an immutable snapshot of a session for rendering.
type View struct {
	Phase     Phase               `json:"phase"`
	Questions []QuestionView      `json:"questions"`
	Answered  int                 `json:"answered"`
	Total     int                 `json:"total"`
	CanSubmit bool                `json:"canSubmit"`
	Result    *domain.ScoreResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type QuestionView struct {
	ID       string       `json:"id"`
	Number   int          `json:"number"`
	Text     string       `json:"text"`
	Selected string       `json:"selected,omitempty"`
	Options  []OptionView `json:"options"`
}

type OptionView struct {
	Text  string      `json:"text"`
	State OptionState `json:"state"`
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Questions returns a copy of the current question set.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Selections returns a copy of the selection set.
func (s *Session) Selections() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.selections))
	for k, v := range s.selections {
		out[k] = v
	}
	return out
}

// Result returns the score once the quiz is completed.
func (s *Session) Result() (domain.ScoreResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.ScoreResult{}, false
	}
	return *s.result, true
}

// ErrorMessage returns the user-visible error, if any.
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// IsSelected reports whether option is the current choice for questionID.
func (s *Session) IsSelected(questionID, option string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	selected, ok := s.selections[questionID]
	return ok && selected == option
}

// OptionState classifies option of questionID for rendering.
func (s *Session) OptionState(questionID, option string) OptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optionStateLocked(questionID, option)
}

func (s *Session) optionStateLocked(questionID, option string) OptionState {
	if s.result == nil {
		if selected, ok := s.selections[questionID]; ok && selected == option {
			return OptionSelected
		}
		return OptionNeutral
	}

	detail, ok := s.result.Detail(questionID)
	if !ok {
		return OptionNeutral
	}
	switch {
	case option == detail.CorrectAnswer:
		return OptionCorrect
	case option == detail.SelectedOption:
		return OptionIncorrect
	default:
		return OptionDimmed
	}
}

// Snapshot renders the whole session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Phase:     s.phase,
		Questions: make([]QuestionView, 0, len(s.questions)),
		Answered:  len(s.selections),
		Total:     len(s.questions),
		Error:     s.errMsg,
	}
	for i, q := range s.questions {
		qv := QuestionView{
			ID:       q.ID,
			Number:   i + 1,
			Text:     q.Text,
			Selected: s.selections[q.ID],
			Options:  make([]OptionView, 0, len(q.Options)),
		}
		for _, opt := range q.Options {
			qv.Options = append(qv.Options, OptionView{Text: opt, State: s.optionStateLocked(q.ID, opt)})
		}
		v.Questions = append(v.Questions, qv)
	}
	if s.result != nil {
		res := *s.result
		v.Result = &res
	}
	v.CanSubmit = s.result == nil && !s.loading && !s.submitting &&
		len(s.questions) > 0 && len(s.selections) == len(s.questions)
	return v
}
