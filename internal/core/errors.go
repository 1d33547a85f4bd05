package core

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// ValidationError indicates blank or conflicting input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates a missing record or physical repository
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// ArchivedError is returned for protocol operations on an archived repository
type ArchivedError struct {
	Mapping string
}

func (e *ArchivedError) Error() string {
	return fmt.Sprintf("repository is archived: %s", e.Mapping)
}

// PersistenceError wraps a metadata store failure
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// EngineError wraps a Git engine failure. Err carries a stack trace so
// that %+v prints it.
type EngineError struct {
	Operation string
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Format prints the wrapped stack with %+v.
func (e *EngineError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprintf(s, "%s: %+v", e.Operation, e.Err)
		return
	}

	_, _ = fmt.Fprint(s, e.Error())
}

func persistence(op string, err error) error {
	return &PersistenceError{Operation: op, Err: err}
}

// NewEngineError wraps a Git engine failure with a stack trace.
func NewEngineError(op string, err error) error {
	return &EngineError{Operation: op, Err: pkgerrors.WithStack(err)}
}

// StatusCode maps an error to the HTTP status the web layer reports.
func StatusCode(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		archived   *ArchivedError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &archived):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
