package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"

	"quiz-challenge/internal/app"
	"quiz-challenge/internal/domain"
)

func TestScenarioCompleteQuiz(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)

	if err := session.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if session.Phase() != app.PhaseReady {
		t.Fatalf("expected ready, got %s", session.Phase())
	}

	mustSelect(t, session, "q1", "4")
	mustSelect(t, session, "q2", "Paris")
	mustSelect(t, session, "q3", "Mercury")

	if err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if session.Phase() != app.PhaseCompleted {
		t.Fatalf("expected completed, got %s", session.Phase())
	}
	res, ok := session.Result()
	if !ok {
		t.Fatalf("expected a result")
	}
	if len(res.Details) != 3 || res.TotalQuestions != 3 {
		t.Fatalf("expected 3 details, got %+v", res)
	}
	if res.Score < 0 || res.Score > 3 {
		t.Fatalf("score out of range: %d", res.Score)
	}
	if math.Abs(res.Percentage-float64(res.Score)/3*100) > 0.01 {
		t.Fatalf("percentage %.2f inconsistent with score %d", res.Percentage, res.Score)
	}
	if res.Score != 2 {
		t.Fatalf("expected 2 correct answers, got %d", res.Score)
	}
	if svc.submitCalls() != 1 {
		t.Fatalf("expected one submit call, got %d", svc.submitCalls())
	}
}

func TestScenarioIncompleteSubmissionMakesNoCall(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)
	mustLoad(t, session)

	mustSelect(t, session, "q1", "4")
	mustSelect(t, session, "q2", "Paris")

	err := session.Submit(ctx)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if svc.submitCalls() != 0 {
		t.Fatalf("expected no network call, got %d", svc.submitCalls())
	}
	if session.ErrorMessage() != app.MsgIncomplete {
		t.Fatalf("unexpected error message %q", session.ErrorMessage())
	}
	if session.Phase() != app.PhaseReady {
		t.Fatalf("expected ready, got %s", session.Phase())
	}
}

func TestScenarioLoadFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	svc.fetchErr = errors.New("connection refused")
	session := newTestSession(svc)

	err := session.Load(ctx)
	if !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected load error, got %v", err)
	}
	if session.Phase() != app.PhaseError {
		t.Fatalf("expected error phase, got %s", session.Phase())
	}
	if len(session.Questions()) != 0 {
		t.Fatalf("expected no questions after failed load")
	}
	if session.ErrorMessage() != app.MsgLoadFailed {
		t.Fatalf("unexpected error message %q", session.ErrorMessage())
	}
	if svc.fetchCalls() != 1 {
		t.Fatalf("expected no automatic retry, got %d fetches", svc.fetchCalls())
	}

	svc.setFetchErr(nil)
	if err := session.Load(ctx); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if session.Phase() != app.PhaseReady || len(session.Questions()) != 3 {
		t.Fatalf("expected ready with 3 questions, got %s/%d", session.Phase(), len(session.Questions()))
	}
	if session.ErrorMessage() != "" {
		t.Fatalf("expected error cleared, got %q", session.ErrorMessage())
	}
}

func TestSelectKeepsLatestChoicePerQuestion(t *testing.T) {
	session := newTestSession(newFakeService(sampleQuestions()))
	mustLoad(t, session)

	questions := session.Questions()
	rnd := rand.New(rand.NewSource(42))
	want := map[string]string{}
	for i := 0; i < 200; i++ {
		q := questions[rnd.Intn(len(questions))]
		opt := q.Options[rnd.Intn(len(q.Options))]
		mustSelect(t, session, q.ID, opt)
		want[q.ID] = opt

		got := session.Selections()
		if len(got) != len(want) {
			t.Fatalf("step %d: %d selections, want %d", i, len(got), len(want))
		}
		for id, opt := range want {
			if got[id] != opt {
				t.Fatalf("step %d: selection for %s = %q, want %q", i, id, got[id], opt)
			}
		}
	}
}

func TestSelectRejectsUnknownQuestionAndOption(t *testing.T) {
	session := newTestSession(newFakeService(sampleQuestions()))
	mustLoad(t, session)

	if err := session.Select("nope", "4"); !errors.Is(err, app.ErrUnknownQuestion) {
		t.Fatalf("expected unknown question, got %v", err)
	}
	if err := session.Select("q1", "42"); !errors.Is(err, app.ErrUnknownOption) {
		t.Fatalf("expected unknown option, got %v", err)
	}
	if len(session.Selections()) != 0 {
		t.Fatalf("rejected selections must not be recorded")
	}
}

func TestSubmitValidationForEveryPartition(t *testing.T) {
	questions := sampleQuestions()
	for mask := 0; mask < 1<<len(questions); mask++ {
		svc := newFakeService(questions)
		session := newTestSession(svc)
		mustLoad(t, session)

		answered := 0
		for i, q := range questions {
			if mask&(1<<i) != 0 {
				mustSelect(t, session, q.ID, q.Options[0])
				answered++
			}
		}

		err := session.Submit(context.Background())
		incomplete := answered != len(questions)
		if incomplete != errors.Is(err, domain.ErrValidation) {
			t.Fatalf("mask %b: answered %d, err %v", mask, answered, err)
		}
		if incomplete && svc.submitCalls() != 0 {
			t.Fatalf("mask %b: network call made for incomplete submission", mask)
		}
		if !incomplete && err != nil {
			t.Fatalf("mask %b: unexpected error %v", mask, err)
		}
	}
}

func TestSelectAfterCompletionIsNoop(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(newFakeService(sampleQuestions()))
	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Venus")
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	before := session.Snapshot()
	if err := session.Select("q1", "3"); err != nil {
		t.Fatalf("select after completion: %v", err)
	}
	if err := session.Select("q2", "Rome"); err != nil {
		t.Fatalf("select after completion: %v", err)
	}
	after := session.Snapshot()
	if after.Phase != app.PhaseCompleted {
		t.Fatalf("phase changed to %s", after.Phase)
	}
	sel := session.Selections()
	if sel["q1"] != "4" || sel["q2"] != "Paris" || len(sel) != 3 {
		t.Fatalf("selections changed after completion: %v", sel)
	}
	if before.Answered != after.Answered {
		t.Fatalf("answered count changed")
	}
}

func TestSubmitFailurePreservesSelections(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	svc.submitErr = errors.New("502 bad gateway")
	session := newTestSession(svc)
	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Mercury")

	err := session.Submit(ctx)
	if !errors.Is(err, domain.ErrSubmit) {
		t.Fatalf("expected submit error, got %v", err)
	}
	if session.Phase() != app.PhaseError || session.ErrorMessage() != app.MsgSubmitFailed {
		t.Fatalf("expected error phase, got %s %q", session.Phase(), session.ErrorMessage())
	}
	if len(session.Selections()) != 3 {
		t.Fatalf("selections lost after failed submit")
	}

	// fix a selection and resubmit
	mustSelect(t, session, "q3", "Venus")
	svc.setSubmitErr(nil)
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	res, _ := session.Result()
	if res.Score != 3 {
		t.Fatalf("expected perfect score after resubmission, got %d", res.Score)
	}
}

func TestRetakeResetsAndRefetches(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)
	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Venus")
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	svc.block()
	done := make(chan error, 1)
	go func() { done <- session.Retake(ctx) }()
	svc.waitFetchStarted(t)

	if session.Phase() != app.PhaseLoading {
		t.Fatalf("expected loading during retake, got %s", session.Phase())
	}
	if len(session.Selections()) != 0 {
		t.Fatalf("expected selections cleared")
	}
	if _, ok := session.Result(); ok {
		t.Fatalf("expected result cleared")
	}
	svc.release()
	if err := <-done; err != nil {
		t.Fatalf("retake: %v", err)
	}
	if session.Phase() != app.PhaseReady {
		t.Fatalf("expected ready after retake, got %s", session.Phase())
	}
	if svc.fetchCalls() != 2 {
		t.Fatalf("expected a fresh fetch, got %d", svc.fetchCalls())
	}
}

func TestRetakeDiscardsStaleFetch(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)

	svc.block()
	first := make(chan error, 1)
	go func() { first <- session.Load(ctx) }()
	svc.waitFetchStarted(t)

	// the retake fetch returns a different set immediately
	svc.unblockNext()
	svc.setQuestions(sampleQuestions()[:1])
	if err := session.Retake(ctx); err != nil {
		t.Fatalf("retake: %v", err)
	}
	if got := len(session.Questions()); got != 1 {
		t.Fatalf("expected retake question set, got %d questions", got)
	}

	svc.release()
	if err := <-first; !errors.Is(err, app.ErrStale) {
		t.Fatalf("expected stale error for superseded load, got %v", err)
	}
	if got := len(session.Questions()); got != 1 {
		t.Fatalf("stale response overwrote question set: %d questions", got)
	}
	if session.Phase() != app.PhaseReady {
		t.Fatalf("expected ready, got %s", session.Phase())
	}
}

func TestRetakeDiscardsStaleSubmit(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)
	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Venus")

	svc.blockSubmit()
	submitted := make(chan error, 1)
	go func() { submitted <- session.Submit(ctx) }()
	svc.waitSubmitStarted(t)

	if err := session.Retake(ctx); err != nil {
		t.Fatalf("retake: %v", err)
	}
	svc.releaseSubmit()
	if err := <-submitted; !errors.Is(err, app.ErrStale) {
		t.Fatalf("expected stale error for superseded submit, got %v", err)
	}
	if _, ok := session.Result(); ok {
		t.Fatalf("stale score was stored")
	}
	if len(session.Selections()) != 0 {
		t.Fatalf("expected selections cleared by retake, got %v", session.Selections())
	}
	if session.Phase() != app.PhaseReady {
		t.Fatalf("expected ready after retake, got %s", session.Phase())
	}
}

func TestLoadAfterCompletionRequiresRetake(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)
	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Venus")
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	svc.setFetchErr(errors.New("down"))
	if err := session.Load(ctx); !errors.Is(err, app.ErrCompleted) {
		t.Fatalf("expected ErrCompleted, got %v", err)
	}
	if svc.fetchCalls() != 1 {
		t.Fatalf("reload after completion reached the service")
	}
	if session.Phase() != app.PhaseCompleted || len(session.Questions()) != 3 {
		t.Fatalf("completed quiz disturbed: phase=%s questions=%d", session.Phase(), len(session.Questions()))
	}
	if _, ok := session.Result(); !ok {
		t.Fatalf("expected result kept")
	}
}

func TestFailedReloadClearsSelections(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)
	mustLoad(t, session)
	mustSelect(t, session, "q1", "4")

	svc.setFetchErr(errors.New("down"))
	if err := session.Load(ctx); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected load error, got %v", err)
	}
	if session.Phase() != app.PhaseError || len(session.Questions()) != 0 || len(session.Selections()) != 0 {
		t.Fatalf("unexpected state phase=%s questions=%d selections=%d",
			session.Phase(), len(session.Questions()), len(session.Selections()))
	}
}

func TestSubmitRejectsReentryAndLocksSelection(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(sampleQuestions())
	session := newTestSession(svc)
	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Mercury")

	svc.blockSubmit()
	done := make(chan error, 1)
	go func() { done <- session.Submit(ctx) }()
	svc.waitSubmitStarted(t)

	if session.Phase() != app.PhaseSubmitting {
		t.Fatalf("expected submitting, got %s", session.Phase())
	}
	if err := session.Submit(ctx); !errors.Is(err, app.ErrBusy) {
		t.Fatalf("expected busy on double submit, got %v", err)
	}
	if err := session.Select("q3", "Venus"); err != nil {
		t.Fatalf("select while submitting: %v", err)
	}
	if session.Selections()["q3"] != "Mercury" {
		t.Fatalf("selection changed while submitting")
	}
	if session.Snapshot().CanSubmit {
		t.Fatalf("submit must be disabled while submitting")
	}

	svc.releaseSubmit()
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if svc.submitCalls() != 1 {
		t.Fatalf("expected one submit call, got %d", svc.submitCalls())
	}
}

func TestOptionStates(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(newFakeService(sampleQuestions()))
	mustLoad(t, session)

	mustSelect(t, session, "q1", "4")
	if got := session.OptionState("q1", "4"); got != app.OptionSelected {
		t.Fatalf("selected option state = %s", got)
	}
	if got := session.OptionState("q1", "3"); got != app.OptionNeutral {
		t.Fatalf("other option state = %s", got)
	}
	if !session.IsSelected("q1", "4") || session.IsSelected("q1", "3") {
		t.Fatalf("IsSelected mismatch")
	}

	mustSelect(t, session, "q2", "Paris")
	mustSelect(t, session, "q3", "Mercury") // wrong, Venus is correct
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	cases := []struct {
		question, option string
		want             app.OptionState
	}{
		{"q1", "4", app.OptionCorrect},
		{"q1", "3", app.OptionDimmed},
		{"q3", "Venus", app.OptionCorrect},
		{"q3", "Mercury", app.OptionIncorrect},
		{"q3", "Mars", app.OptionDimmed},
		{"unknown", "x", app.OptionNeutral},
	}
	for _, tc := range cases {
		if got := session.OptionState(tc.question, tc.option); got != tc.want {
			t.Fatalf("%s/%s = %s, want %s", tc.question, tc.option, got, tc.want)
		}
	}

	view := session.Snapshot()
	if view.Result == nil || view.CanSubmit {
		t.Fatalf("unexpected completed view %+v", view)
	}
	if view.Questions[2].Options[0].State != app.OptionIncorrect {
		t.Fatalf("snapshot option state = %s", view.Questions[2].Options[0].State)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	svc := newFakeService(sampleQuestions())
	a := newTestSession(svc)
	b := newTestSession(svc)
	mustLoad(t, a)
	mustLoad(t, b)

	mustSelect(t, a, "q1", "4")
	if len(b.Selections()) != 0 {
		t.Fatalf("selection leaked across sessions")
	}
}

func newTestSession(svc app.QuestionService) *app.Session {
	return app.NewSession(svc, app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func mustLoad(t *testing.T, s *app.Session) {
	t.Helper()
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func mustSelect(t *testing.T, s *app.Session, questionID, option string) {
	t.Helper()
	if err := s.Select(questionID, option); err != nil {
		t.Fatalf("select %s=%s: %v", questionID, option, err)
	}
}

func answerAll(t *testing.T, s *app.Session, q1, q2, q3 string) {
	t.Helper()
	mustSelect(t, s, "q1", q1)
	mustSelect(t, s, "q2", q2)
	mustSelect(t, s, "q3", q3)
}

func sampleQuestions() []domain.BankQuestion {
	return []domain.BankQuestion{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{ID: "q2", Text: "Capital of France?", Options: []string{"Rome", "Paris", "Berlin"}, CorrectAnswer: "Paris"},
		{ID: "q3", Text: "Hottest planet?", Options: []string{"Mercury", "Venus", "Mars"}, CorrectAnswer: "Venus"},
	}
}

// fakeService scores against an in-memory answer key. Fetches and submits
// can be held open to exercise in-flight behavior.
type fakeService struct {
	mu        sync.Mutex
	questions []domain.BankQuestion
	fetchErr  error
	submitErr error
	fetches   int
	submits   int

	fetchGate     chan struct{}
	fetchStarted  chan struct{}
	submitGate    chan struct{}
	submitStarted chan struct{}
	skipGate      bool
}

func newFakeService(questions []domain.BankQuestion) *fakeService {
	return &fakeService{questions: questions}
}

func (f *fakeService) FetchAllQuestions(ctx context.Context) ([]domain.Question, error) {
	f.mu.Lock()
	f.fetches++
	questions := f.questions
	gate, started := f.fetchGate, f.fetchStarted
	if f.skipGate {
		gate, started = nil, nil
		f.skipGate = false
	}
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.Public())
	}
	return out, nil
}

func (f *fakeService) SubmitAnswers(ctx context.Context, answers []domain.Answer) (domain.ScoreResult, error) {
	f.mu.Lock()
	f.submits++
	gate, started := f.submitGate, f.submitStarted
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return domain.ScoreResult{}, f.submitErr
	}
	details := make([]domain.QuestionResult, 0, len(answers))
	for _, a := range answers {
		for _, q := range f.questions {
			if q.ID != a.QuestionID {
				continue
			}
			details = append(details, domain.QuestionResult{
				QuestionID:     q.ID,
				QuestionText:   q.Text,
				Options:        q.Options,
				SelectedOption: a.SelectedOption,
				CorrectAnswer:  q.CorrectAnswer,
				IsCorrect:      a.SelectedOption == q.CorrectAnswer,
			})
		}
	}
	return domain.NewScoreResult(details), nil
}

func (f *fakeService) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchGate = make(chan struct{})
	f.fetchStarted = make(chan struct{}, 4)
}

// unblockNext lets the next fetch through while earlier ones stay held.
func (f *fakeService) unblockNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipGate = true
}

func (f *fakeService) release() {
	f.mu.Lock()
	gate := f.fetchGate
	f.fetchGate = nil
	f.mu.Unlock()
	close(gate)
}

func (f *fakeService) waitFetchStarted(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	started := f.fetchStarted
	f.mu.Unlock()
	<-started
}

func (f *fakeService) blockSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitGate = make(chan struct{})
	f.submitStarted = make(chan struct{}, 4)
}

func (f *fakeService) releaseSubmit() {
	f.mu.Lock()
	gate := f.submitGate
	f.submitGate = nil
	f.mu.Unlock()
	close(gate)
}

func (f *fakeService) waitSubmitStarted(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	started := f.submitStarted
	f.mu.Unlock()
	<-started
}

func (f *fakeService) setQuestions(q []domain.BankQuestion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = q
}

func (f *fakeService) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeService) setSubmitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

func (f *fakeService) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeService) submitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func TestOnChangeFiresPerTransition(t *testing.T) {
	ctx := context.Background()
	var (
		mu     sync.Mutex
		phases []app.Phase
	)
	var session *app.Session
	session = app.NewSession(newFakeService(sampleQuestions()),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		app.WithOnChange(func() {
			mu.Lock()
			defer mu.Unlock()
			phases = append(phases, session.Phase())
		}),
	)

	mustLoad(t, session)
	answerAll(t, session, "4", "Paris", "Venus")
	mustSelect(t, session, "q1", "4") // unchanged, no notification
	if err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []app.Phase{
		app.PhaseLoading, app.PhaseReady,
		app.PhaseReady, app.PhaseReady, app.PhaseReady,
		app.PhaseSubmitting, app.PhaseCompleted,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != len(want) {
		t.Fatalf("got %d notifications %v, want %v", len(phases), phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("notification %d = %s, want %s", i, phases[i], want[i])
		}
	}
}
