package server

import (
	"errors"
	"fmt"

	"github.com/hallfield/homehub-core/internal/auth"
	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/session"
)

// Wire error codes. Every error response carries exactly one of these.
const (
	CodeProtocolError      = "protocol_error"
	CodeNotAuthenticated   = "not_authenticated"
	CodeNoHouseSelected    = "no_house_selected"
	CodeAccessDenied       = "access_denied"
	CodeNotFound           = "not_found"
	CodeUnsupportedAction  = "unsupported_action"
	CodeMissingParameter   = "missing_parameter"
	CodeInvalidValue       = "invalid_value"
	CodeStateUnavailable   = "state_unavailable"
	CodePersistenceFailure = "persistence_failure"
	CodeInternalError      = "internal_error"
)

// Dispatcher-level sentinels.
var (
	errProtocol         = errors.New("server: protocol error")
	errNotAuthenticated = errors.New("server: not authenticated")
	errNoHouseSelected  = errors.New("server: no house selected")
	errAccessDenied     = errors.New("server: access denied")

	// errAlarmLockout blocks non-admin mutations while the house alarm
	// is triggered.
	errAlarmLockout = errors.New("server: alarm triggered, admin required")

	// ErrPersistenceFailure wraps a store write that failed after the
	// in-memory mutation was rolled back.
	ErrPersistenceFailure = errors.New("server: persistence failure")
)

// errProtocolUnknownCommand flags a command name outside the protocol.
func errProtocolUnknownCommand(cmd string) error {
	return fmt.Errorf("%w: unknown command %q", errProtocol, cmd)
}

// errorCode maps an error to its wire code. Unrecognised errors are
// internal.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errProtocol):
		return CodeProtocolError
	case errors.Is(err, errNotAuthenticated):
		return CodeNotAuthenticated
	case errors.Is(err, errNoHouseSelected):
		return CodeNoHouseSelected
	case errors.Is(err, errAccessDenied),
		errors.Is(err, errAlarmLockout),
		errors.Is(err, auth.ErrNoHouseAccess),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired):
		return CodeAccessDenied
	case errors.Is(err, house.ErrHouseNotFound),
		errors.Is(err, house.ErrRoomNotFound),
		errors.Is(err, house.ErrDeviceNotFound),
		errors.Is(err, house.ErrNoAlarm),
		errors.Is(err, auth.ErrUserNotFound):
		return CodeNotFound
	case errors.Is(err, house.ErrUnsupportedAction):
		return CodeUnsupportedAction
	case errors.Is(err, house.ErrMissingParameter):
		return CodeMissingParameter
	case errors.Is(err, house.ErrInvalidValue),
		errors.Is(err, house.ErrInvalidDeviceKind),
		errors.Is(err, house.ErrCeilingLightExists),
		errors.Is(err, house.ErrBlindsExist),
		errors.Is(err, house.ErrAlarmNotArmed):
		return CodeInvalidValue
	case errors.Is(err, house.ErrStateUnavailable),
		errors.Is(err, session.ErrStateUnavailable):
		return CodeStateUnavailable
	case errors.Is(err, ErrPersistenceFailure):
		return CodePersistenceFailure
	default:
		return CodeInternalError
	}
}

// errorToResponse shapes an error into a wire error response. Internal
// errors get a generic message so store details never leak to clients.
func errorToResponse(err error) map[string]any {
	code := errorCode(err)
	msg := err.Error()
	if code == CodeInternalError {
		msg = "internal error"
	}
	if code == CodePersistenceFailure {
		msg = "state change could not be saved"
	}
	return errorResponse(code, msg)
}
