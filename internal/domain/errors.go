package domain

import "errors"

var (
	// ErrQuestionNotFound indicates an unknown question ID.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates an unknown answer ID.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrContestantNotFound is returned when a contestant acts before registering.
	ErrContestantNotFound = errors.New("contestant not found")
	// ErrCompetitionNotFound indicates an unknown competition ID.
	ErrCompetitionNotFound = errors.New("competition not found")
	// ErrInvalidState is returned when an operation is attempted outside its
	// allowed source state (e.g. submitting after lock).
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrDuplicateSubmission is returned on a second answer for an already
	// answered (question, contestant) pair.
	ErrDuplicateSubmission = errors.New("answer already submitted for this question")
	// ErrQuoteNotFound indicates the quote table is empty.
	ErrQuoteNotFound = errors.New("no quotes available")
)
