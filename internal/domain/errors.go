package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoQuestions is returned when a session is started before questions are loaded.
	ErrNoQuestions = errors.New("no questions loaded")
	// ErrLoading is returned when an operation needs a settled question set.
	ErrLoading = errors.New("questions are still loading")
	// ErrInvalidPhase indicates the operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrOptionOutOfRange indicates a selected option index does not exist.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrStaleFetch is returned when a fetch finished after a newer one started.
	ErrStaleFetch = errors.New("fetch superseded by a newer request")
	// ErrNameRequired is returned when a score report has no name.
	ErrNameRequired = errors.New("please enter your name")
	// ErrEmailNotConfigured is returned when email settings are incomplete.
	ErrEmailNotConfigured = errors.New("email service configuration incomplete")
	// ErrKeyNotFound is returned by key/value stores for absent keys.
	ErrKeyNotFound = errors.New("key not found")
)

// StatusError carries a non-OK HTTP status from the trivia API.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trivia api returned status %d", e.StatusCode)
}

// RateLimited reports whether the status signals throttling.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// SubmissionErrorKind classifies email submission failures.
type SubmissionErrorKind string

const (
	SubmissionNetwork  SubmissionErrorKind = "network"
	SubmissionConfig   SubmissionErrorKind = "config"
	SubmissionRejected SubmissionErrorKind = "rejected"
)

// SubmissionError is the structured failure returned by a report sender.
type SubmissionError struct {
	Kind   SubmissionErrorKind
	Status int
	Detail string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("email submission %s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("email submission %s: %s", e.Kind, e.Detail)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
