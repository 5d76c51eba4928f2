package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("table not found")
	ErrConnection    = errors.New("data store unavailable")
	ErrSchema        = errors.New("missing required column")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrUnknownTable  = errors.New("unknown table")
	ErrEmptyHeader   = errors.New("table has no columns")
	ErrInvalidTable  = errors.New("invalid table")
)

// NotFoundError reports that a named table (worksheet, file sheet, SQL row)
// does not exist in the backend.
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConnectionError wraps a transport or backend failure.
type ConnectionError struct {
	Op    string
	Table string
	Err   error
}

func (e *ConnectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// SchemaError names a column the scoring engine needs but could not find.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s: missing required column %q", e.Table, e.Column)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ErrorKind classifies an error for the presentation boundary.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindNotFound     ErrorKind = "not_found"
	KindConnection   ErrorKind = "connection"
	KindSchema       ErrorKind = "schema"
	KindInvalidInput ErrorKind = "invalid_input"
	KindInternal     ErrorKind = "internal"
)

// KindOf maps err onto an ErrorKind. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return KindConnection
	case errors.Is(err, ErrSchema):
		return KindSchema
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrUnknownTable), errors.Is(err, ErrEmptyHeader), errors.Is(err, ErrInvalidTable):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// UserMessage renders err as a short message suitable for inline display.
func UserMessage(err error) string {
	var (
		nf *NotFoundError
		se *SchemaError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &nf):
		return fmt.Sprintf("Could not load %s: the table does not exist.", nf.Table)
	case errors.As(err, &se):
		return fmt.Sprintf("Cannot run analysis: %s is missing column %q.", se.Table, se.Column)
	case errors.Is(err, ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return "The data store could not be reached. Please retry."
	case errors.Is(err, ErrInvalidPeriod):
		return "Please select a valid report month."
	case errors.Is(err, ErrUnknownTable):
		return "Unknown table."
	case errors.Is(err, ErrEmptyHeader):
		return "The table must have at least one column."
	case errors.Is(err, ErrInvalidTable):
		return "Cannot save: " + err.Error() + "."
	default:
		return "Unexpected error. Please retry."
	}
}
