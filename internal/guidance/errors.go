package guidance

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where in the pipeline a failure happened.
type ErrorKind string

const (
	KindConfig   ErrorKind = "config"
	KindUpstream ErrorKind = "upstream"
	KindStore    ErrorKind = "store"
	KindParse    ErrorKind = "parse"
	KindSchema   ErrorKind = "schema"
)

var (
	// ErrInvalidJSON means the model reply held neither a fenced JSON block nor a bare object.
	ErrInvalidJSON = errors.New("AI did not return a valid JSON object in the expected format.")
	// ErrSchemaMismatch means the reply parsed but did not have the expected shape.
	ErrSchemaMismatch = errors.New("AI response did not match the expected schema")
)

// StageError wraps a pipeline failure with its kind. Its message is the wrapped error's message
// so callers can surface it unchanged.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(kind ErrorKind, stage string, err error) error {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind of a pipeline error, or "unknown" for anything else.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return "unknown"
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, fmt.Sprintf(format, args...))
}
