package domain

import "errors"

var (
	// ErrLoad is returned when the question set could not be fetched.
	ErrLoad = errors.New("load questions failed")
	// ErrValidation is returned when a submission is incomplete.
	ErrValidation = errors.New("answer all questions")
	// ErrSubmit is returned when the scoring call failed.
	ErrSubmit = errors.New("submit answers failed")

	// ErrNetwork marks transport failures talking to the question service.
	ErrNetwork = errors.New("question service unreachable")
	// ErrService marks non-2xx or malformed responses from the question service.
	ErrService = errors.New("question service error")

	// ErrNoQuestions indicates the question bank is empty.
	ErrNoQuestions = errors.New("no questions available")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option is not offered by its question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrDuplicateAnswer indicates the same question was answered twice in one submission.
	ErrDuplicateAnswer = errors.New("duplicate answer")
)
