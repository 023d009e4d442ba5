package response

import (
	"errors"
	"net/http"

	"github.com/stemsi/examprint/internal/service"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenRevoked  ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"
	ErrStaffOnly        ErrCode = "STAFF_ONLY"
	ErrEditorOnly       ErrCode = "EDITOR_ONLY"
	ErrGroupRestricted  ErrCode = "GROUP_RESTRICTED"
	ErrResultsHidden    ErrCode = "RESULTS_HIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrConflict     ErrCode = "CONFLICT"
	ErrNameConflict ErrCode = "NAME_CONFLICT"
	ErrInvalidState ErrCode = "INVALID_STATE"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrSetIndexNotNext   ErrCode = "SET_INDEX_NOT_NEXT"
	ErrSetMoveOutOfRange ErrCode = "SET_MOVE_OUT_OF_RANGE"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrNothingToPrint    ErrCode = "NOTHING_TO_PRINT"
	ErrPrintNotStarted   ErrCode = "PRINT_NOT_STARTED"
	ErrPrintExists       ErrCode = "PRINT_EXISTS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenRevoked:
		return "The authentication token has been revoked."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStaffOnly:
		return "This resource is restricted to course staff."
	case ErrEditorOnly:
		return "Only teachers can change this resource."
	case ErrGroupRestricted:
		return "This session is restricted to other groups."
	case ErrResultsHidden:
		return "Results are not available yet."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Check the fields."
	case ErrInvalidID:
		return "The identifier is not valid."
	case ErrInvalidPayload:
		return "The request body is not valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrNameConflict:
		return "The name is already in use."
	case ErrInvalidState:
		return "The operation is not allowed in the current state."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrSetIndexNotNext:
		return "Sets must be added right after the last one."
	case ErrSetMoveOutOfRange:
		return "The set cannot be moved any further."
	case ErrSessionClosed:
		return "The session is not accepting answers."
	case ErrNothingToPrint:
		return "The exam has no questions to print."
	case ErrPrintNotStarted:
		return "The exam has not been started yet."
	case ErrPrintExists:
		return "This user already has an exam in this session."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Try again shortly."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unknown error occurred."
	}
}

// specific lists wrapped service errors with their own code, checked before
// the general classes.
var specific = []struct {
	err  error
	code ErrCode
}{
	{service.ErrStaffOnly, ErrStaffOnly},
	{service.ErrEditorOnly, ErrEditorOnly},
	{service.ErrGroupRestricted, ErrGroupRestricted},
	{service.ErrResultsHidden, ErrResultsHidden},
	{service.ErrSetIndexNotNext, ErrSetIndexNotNext},
	{service.ErrSetMoveOutOfRange, ErrSetMoveOutOfRange},
	{service.ErrSessionClosed, ErrSessionClosed},
	{service.ErrNothingToPrint, ErrNothingToPrint},
	{service.ErrPrintNotStarted, ErrPrintNotStarted},
	{service.ErrPrintExists, ErrPrintExists},
}

// FromError maps a service error to an HTTP status and code.
func FromError(err error) (int, ErrCode) {
	for _, s := range specific {
		if errors.Is(err, s.err) {
			return statusOf(err), s.code
		}
	}
	return statusOf(err), classCode(err)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func classCode(err error) ErrCode {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrAlreadyExists):
		return ErrConflict
	case errors.Is(err, service.ErrInvalidState):
		return ErrInvalidState
	case errors.Is(err, service.ErrPermissionDenied):
		return ErrPermissionDenied
	default:
		return ErrInternal
	}
}
