package house

import "errors"

// Domain errors for the house package. Checked with errors.Is at the
// dispatcher boundary and mapped to wire error codes there.
var (
	// ErrHouseNotFound is returned when a house id does not exist in the store.
	ErrHouseNotFound = errors.New("house: not found")

	// ErrRoomNotFound is returned when a room id does not exist in the house.
	ErrRoomNotFound = errors.New("house: room not found")

	// ErrDeviceNotFound is returned when a device id does not exist in the
	// targeted scope.
	ErrDeviceNotFound = errors.New("house: device not found")

	// ErrCeilingLightExists is returned when adding a second ceiling light
	// to a room.
	ErrCeilingLightExists = errors.New("house: room already has a ceiling light")

	// ErrBlindsExist is returned when adding a second set of blinds to a room.
	ErrBlindsExist = errors.New("house: room already has blinds")

	// ErrNoAlarm is returned when an alarm operation targets a house
	// without one.
	ErrNoAlarm = errors.New("house: no alarm installed")

	// ErrAlarmNotArmed is returned when manually triggering a disarmed alarm.
	ErrAlarmNotArmed = errors.New("house: alarm is not armed")

	// ErrUnsupportedAction is returned when an action does not apply to the
	// device's kind.
	ErrUnsupportedAction = errors.New("house: unsupported action for device")

	// ErrMissingParameter is returned when an action lacks a required parameter.
	ErrMissingParameter = errors.New("house: missing required parameter")

	// ErrInvalidValue is returned when a parameter is outside its valid set,
	// e.g. an unknown color.
	ErrInvalidValue = errors.New("house: invalid value")

	// ErrInvalidDeviceKind is returned when a device kind string is not
	// recognised.
	ErrInvalidDeviceKind = errors.New("house: invalid device kind")

	// ErrStateUnavailable is returned when the cache mutex cannot be
	// acquired within the bounded wait. Callers receive an internal error
	// rather than blocking indefinitely.
	ErrStateUnavailable = errors.New("house: state lock unavailable")
)
