package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrGone covers finished or canceled meetings that may no longer be
	// inspected through the candidate-facing path.
	ErrGone = errors.New("this meeting is no longer available")
)

type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

type AuthorizationError struct {
	Message string
}

func (e AuthorizationError) Error() string { return e.Message }

type StateError struct {
	Current  string
	Expected string
}

func (e StateError) Error() string {
	return fmt.Sprintf("meeting is %s, expected %s", e.Current, e.Expected)
}

type WindowError struct {
	TooLate bool
}

func (e WindowError) Error() string {
	if e.TooLate {
		return "the interview window has expired"
	}
	return "the interview is not yet available to join"
}
