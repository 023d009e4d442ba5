package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examprint/internal/repository"
)

// Domain Errors. Specific failures wrap one of these so callers can match
// the class with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidState     = errors.New("invalid state")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInternal         = errors.New("internal error")
)

var (
	ErrSetIndexNotNext   = fmt.Errorf("%w: set index must be the next one", ErrInvalidState)
	ErrSetNotInExam      = fmt.Errorf("%w: set does not belong to the exam", ErrInvalidState)
	ErrSetMoveOutOfRange = fmt.Errorf("%w: set cannot move further", ErrInvalidState)
	ErrSessionClosed     = fmt.Errorf("%w: session is not accepting answers", ErrInvalidState)
	ErrNothingToPrint    = fmt.Errorf("%w: exam has no questions to print", ErrInvalidState)
	ErrPrintNotStarted   = fmt.Errorf("%w: print has not been started", ErrInvalidState)
	ErrPrintExists       = fmt.Errorf("%w: print for this user and session", ErrAlreadyExists)
	ErrStaffOnly         = fmt.Errorf("%w: staff only", ErrPermissionDenied)
	ErrEditorOnly        = fmt.Errorf("%w: editing requires a teacher role", ErrPermissionDenied)
	ErrGroupRestricted   = fmt.Errorf("%w: session is restricted to other groups", ErrPermissionDenied)
	ErrResultsHidden     = fmt.Errorf("%w: results are not visible", ErrPermissionDenied)
)

// NameConflictError is a recoverable name collision within a scope. It
// matches ErrAlreadyExists and names the offending field so a form can be
// shown again with the user's input.
type NameConflictError struct {
	Field string
	Value string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

func (e *NameConflictError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// notFound maps a repository miss to ErrNotFound and anything else to an
// internal error, keeping the cause in the chain.
func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return internal(what, err)
}

func internal(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, what, err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}
