package engine

import "errors"

// Code is a caller-facing error code. Codes are part of the protocol: the
// transport sends them verbatim in acknowledgements.
type Code string

func (c Code) Error() string { return string(c) }

// Authorization
const (
	ErrNotHost       Code = "NOT_HOST"
	ErrNotController Code = "NOT_CONTROLLER"
	ErrNotAllowed    Code = "NOT_ALLOWED"
	ErrNoMember      Code = "NO_MEMBER"
)

// Existence
const (
	ErrNoRoom       Code = "NO_ROOM"
	ErrRoomExists   Code = "ROOM_EXISTS"
	ErrNoSuchMember Code = "NO_SUCH_MEMBER"
	ErrRoomNotFound Code = "ROOM_NOT_FOUND"
)

// State / phase
const (
	ErrPhaseLocked Code = "PHASE_LOCKED"
	ErrThemeLocked Code = "THEME_LOCKED"
	ErrGuessLocked Code = "GUESS_LOCKED"
)

// Validation
const (
	ErrInvalidCode   Code = "INVALID_CODE"
	ErrDupSubmitter  Code = "DUP_SUBMITTER"
	ErrAssignFailed  Code = "ASSIGN_FAILED"
	ErrUnknownAction Code = "UNKNOWN_ACTION"
	ErrBadPayload    Code = "BAD_PAYLOAD"
)

// ErrInternal is reported for anything that is not a Code.
const ErrInternal Code = "INTERNAL"

// DetailedError attaches details to a Code, e.g. the phase a guess was rejected in.
type DetailedError struct {
	Code    Code
	Details any
}

func (e *DetailedError) Error() string { return string(e.Code) }

func (e *DetailedError) Unwrap() error { return e.Code }

func withDetails(code Code, details any) error {
	return &DetailedError{Code: code, Details: details}
}

// CodeOf extracts the protocol code and optional details from err.
func CodeOf(err error) (Code, any) {
	var de *DetailedError
	if errors.As(err, &de) {
		return de.Code, de.Details
	}
	var c Code
	if errors.As(err, &c) {
		return c, nil
	}
	return ErrInternal, nil
}
