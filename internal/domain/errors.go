package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing user, export root or export file.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a request missing a required identifier or carrying a malformed one.
	ErrValidation = errors.New("validation failed")
)

// ParseError describes a failure to read part of an export. Fatal errors abort
// the run; non-fatal ones only drop the record they describe.
type ParseError struct {
	Source string
	Record string
	Fatal  bool
	Err    error
}

func (e *ParseError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("parse %s (%s): %v", e.Source, e.Record, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsFatalParse reports whether err carries a run-aborting ParseError.
func IsFatalParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Fatal
}
