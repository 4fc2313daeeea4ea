package session

import "errors"

type ValidationIssue struct{ Field, Reason string }

type ValidationError struct{ Issues []ValidationIssue }

var ErrInvalidEvent = errors.New("invalid session event")

func (e *ValidationError) Error() string { return ErrInvalidEvent.Error() }
func (e *ValidationError) add(f, r string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: f, Reason: r})
}
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidEvent }

func (e *ValidationError) orNil() error {
	if len(e.Issues) > 0 {
		return e
	}
	return nil
}
