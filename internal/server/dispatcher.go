package server

import (
	"context"
	"encoding/json"

	"github.com/hallfield/homehub-core/internal/auth"
	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/hub"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
	"github.com/hallfield/homehub-core/internal/session"
)

// StatePublisher exports device state changes to an external bus. Calls
// are best-effort: a failed export never affects the command.
type StatePublisher interface {
	PublishDeviceState(houseID, roomID, deviceID int64, kind string, status map[string]any)
}

// TelemetryWriter records command activity for time-series analysis.
// Best-effort, fire-and-forget.
type TelemetryWriter interface {
	RecordDeviceAction(houseID, roomID, deviceID int64, kind, action string)
}

// commandClasses maps each house-scoped command to the permission class
// it requires. Commands absent from the map (login, logout, join_house,
// leave_house) have their own gating.
var commandClasses = map[string]auth.CommandClass{
	"query_house":         auth.ClassView,
	"query_room":          auth.ClassView,
	"device_status":       auth.ClassView,
	"device_group_status": auth.ClassView,
	"list_house_devices":  auth.ClassView,
	"list_room_devices":   auth.ClassView,
	"list_group_devices":  auth.ClassView,

	"device_action":       auth.ClassControl,
	"device_group_action": auth.ClassControl,

	"add_room":            auth.ClassStructure,
	"remove_room":         auth.ClassStructure,
	"add_device":          auth.ClassStructure,
	"remove_device":       auth.ClassStructure,
	"set_alarm_threshold": auth.ClassStructure,
}

// Dispatcher routes decoded client commands to their handlers and owns
// the cross-cutting order of checks: session → authentication → house
// membership → permission class → alarm lockout → action → persistence
// → broadcast.
type Dispatcher struct {
	sessions  *session.Registry
	cache     *house.Cache
	houseRepo house.Repository
	authRepo  auth.Repository
	tokens    *auth.TokenIssuer
	hub       *hub.Hub
	logger    *logging.Logger

	// Optional integrations, nil when disabled.
	publisher StatePublisher
	telemetry TelemetryWriter
}

// NewDispatcher wires a dispatcher. publisher and telemetry may be nil.
func NewDispatcher(
	sessions *session.Registry,
	cache *house.Cache,
	houseRepo house.Repository,
	authRepo auth.Repository,
	tokens *auth.TokenIssuer,
	broadcast *hub.Hub,
	logger *logging.Logger,
	publisher StatePublisher,
	telemetry TelemetryWriter,
) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		cache:     cache,
		houseRepo: houseRepo,
		authRepo:  authRepo,
		tokens:    tokens,
		hub:       broadcast,
		logger:    logger,
		publisher: publisher,
		telemetry: telemetry,
	}
}

// Dispatch handles one raw client message and returns the encoded direct
// response. A panic in a handler is contained to this command: the client
// gets an internal error and the connection stays up.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, raw []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panicked",
				"session_id", sessionID, "panic", r)
			out = encodeResponse(errorResponse(CodeInternalError, "internal error"))
		}
	}()

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encodeResponse(errorResponse(CodeProtocolError, "malformed request"))
	}
	if req.Command == "" {
		return encodeResponse(errorResponse(CodeProtocolError, "missing command"))
	}

	resp, err := d.route(ctx, sessionID, &req)
	if err != nil {
		d.logger.Debug("command failed",
			"session_id", sessionID, "command", req.Command,
			"code", errorCode(err), "error", err)
		return encodeResponse(errorToResponse(err))
	}
	return encodeResponse(resp)
}

func (d *Dispatcher) route(ctx context.Context, sessionID string, req *Request) (map[string]any, error) {
	sess, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch req.Command {
	case "login":
		return d.handleLogin(ctx, sess, req)
	case "logout":
		return d.handleLogout(ctx, sess)
	case "join_house":
		return d.handleJoinHouse(ctx, sess, req)
	case "leave_house":
		return d.handleLeaveHouse(ctx, sess)
	}

	class, ok := commandClasses[req.Command]
	if !ok {
		return nil, errProtocolUnknownCommand(req.Command)
	}
	if err := requireHouse(sess); err != nil {
		return nil, err
	}
	if !auth.Allows(sess.Role, class) {
		return nil, errAccessDenied
	}

	switch req.Command {
	case "device_action":
		return d.handleDeviceAction(ctx, sess, req)
	case "device_group_action":
		return d.handleDeviceGroupAction(ctx, sess, req)
	case "query_house":
		return d.handleQueryHouse(ctx, sess)
	case "query_room":
		return d.handleQueryRoom(ctx, sess, req)
	case "device_status":
		return d.handleDeviceStatus(ctx, sess, req)
	case "device_group_status":
		return d.handleDeviceGroupStatus(ctx, sess, req)
	case "list_house_devices":
		return d.handleListHouseDevices(ctx, sess)
	case "list_room_devices":
		return d.handleListRoomDevices(ctx, sess, req)
	case "list_group_devices":
		return d.handleListGroupDevices(ctx, sess, req)
	case "add_room":
		return d.handleAddRoom(ctx, sess, req)
	case "remove_room":
		return d.handleRemoveRoom(ctx, sess, req)
	case "add_device":
		return d.handleAddDevice(ctx, sess, req)
	case "remove_device":
		return d.handleRemoveDevice(ctx, sess, req)
	case "set_alarm_threshold":
		return d.handleSetAlarmThreshold(ctx, sess, req)
	default:
		return nil, errProtocolUnknownCommand(req.Command)
	}
}

// requireAuth gates commands on a completed login.
func requireAuth(sess session.Session) error {
	if !sess.Authenticated {
		return errNotAuthenticated
	}
	return nil
}

// requireHouse gates commands on a joined house (which implies login).
func requireHouse(sess session.Session) error {
	if err := requireAuth(sess); err != nil {
		return err
	}
	if sess.HouseID == 0 {
		return errNoHouseSelected
	}
	return nil
}

// checkAlarmLockout blocks every house-scoped command for non-admins
// while the house alarm is triggered, queries included. Only an admin can
// act until the alarm is disarmed or stopped.
func checkAlarmLockout(h *house.House, role auth.Role) error {
	if h.Alarm != nil && h.Alarm.IsTriggered && role != auth.RoleAdmin {
		return errAlarmLockout
	}
	return nil
}

// exportDeviceState pushes a state change to the optional integrations.
func (d *Dispatcher) exportDeviceState(houseID, roomID int64, kind house.DeviceKind, action string, status house.State) {
	deviceID, _ := status["device_id"].(int64) //nolint:errcheck // status always carries the id
	if d.publisher != nil {
		d.publisher.PublishDeviceState(houseID, roomID, deviceID, string(kind), status)
	}
	if d.telemetry != nil {
		d.telemetry.RecordDeviceAction(houseID, roomID, deviceID, string(kind), action)
	}
}
