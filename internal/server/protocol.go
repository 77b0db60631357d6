package server

import (
	"encoding/json"

	"github.com/hallfield/homehub-core/internal/house"
)

// Request is the envelope every client command arrives in. Fields beyond
// Command are optional and command-specific; absent numeric fields decode
// to zero and pointer fields to nil, which handlers treat as "not given".
type Request struct {
	Command string `json:"command"`

	// login
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`

	// house / room / device addressing
	HouseID  int64 `json:"house_id,omitempty"`
	RoomID   int64 `json:"room_id,omitempty"`
	DeviceID int64 `json:"device_id,omitempty"`

	// device actions
	DeviceType string `json:"device_type,omitempty"`
	Action     string `json:"action,omitempty"`
	Level      *int   `json:"level,omitempty"`
	Color      string `json:"color,omitempty"`
	Code       string `json:"code,omitempty"`

	// structure changes
	RoomName   string           `json:"room_name,omitempty"`
	Threshold  *int             `json:"threshold,omitempty"`
	Attributes DeviceAttributes `json:"attributes,omitempty"`
}

// DeviceAttributes is the initial state for add_device. Unset fields fall
// back to per-kind defaults.
type DeviceAttributes struct {
	IsOn   *bool    `json:"is_on,omitempty"`
	Shade  *int     `json:"shade,omitempty"`
	Color  string   `json:"color,omitempty"`
	Codes  []string `json:"codes,omitempty"`
	IsUp   *bool    `json:"is_up,omitempty"`
	IsOpen *bool    `json:"is_open,omitempty"`
}

// Response statuses. Every direct response carries exactly one.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Broadcast type suffix and structural broadcast types. Device update
// broadcasts use "<kind>_update" / "<kind>_group_update".
const (
	typeUpdateSuffix      = "_update"
	typeGroupUpdateSuffix = "_group_update"
	TypeRoomAdded         = "room_added"
	TypeRoomRemoved       = "room_removed"
	TypeDeviceAdded       = "device_added"
	TypeDeviceRemoved     = "device_removed"
	TypeAlarmUpdate       = "alarm_update"
	TypeAlarmTriggered    = "alarm_triggered"
)

// successResponse builds a success response with extra fields merged in.
func successResponse(fields map[string]any) map[string]any {
	resp := map[string]any{"status": StatusSuccess}
	for k, v := range fields {
		resp[k] = v
	}
	return resp
}

// errorResponse builds an error response.
func errorResponse(code, message string) map[string]any {
	return map[string]any{
		"status":  StatusError,
		"code":    code,
		"message": message,
	}
}

// encodeResponse marshals a response, falling back to a canned internal
// error if the payload itself will not encode.
func encodeResponse(resp map[string]any) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"status":"error","code":"internal_error","message":"response encoding failed"}`)
	}
	return data
}

// deviceUpdateBroadcast shapes a single-device state-change broadcast.
func deviceUpdateBroadcast(kind house.DeviceKind, roomID int64, action string, status house.State) map[string]any {
	return map[string]any{
		"type":      string(kind) + typeUpdateSuffix,
		"room_id":   roomID,
		"device_id": status["device_id"],
		"action":    action,
		"status":    status,
	}
}

// groupUpdateBroadcast shapes a batch state-change broadcast.
func groupUpdateBroadcast(kind house.DeviceKind, action string, succeeded, failed []map[string]any) map[string]any {
	return map[string]any{
		"type":      string(kind) + typeGroupUpdateSuffix,
		"action":    action,
		"succeeded": succeeded,
		"failed":    failed,
	}
}

func roomAddedBroadcast(roomID int64, name string) map[string]any {
	return map[string]any{
		"type":    TypeRoomAdded,
		"room_id": roomID,
		"name":    name,
	}
}

func roomRemovedBroadcast(roomID int64) map[string]any {
	return map[string]any{
		"type":    TypeRoomRemoved,
		"room_id": roomID,
	}
}

func deviceAddedBroadcast(roomID int64, kind house.DeviceKind, status house.State) map[string]any {
	return map[string]any{
		"type":        TypeDeviceAdded,
		"room_id":     roomID,
		"device_id":   status["device_id"],
		"device_type": string(kind),
		"status":      status,
	}
}

func deviceRemovedBroadcast(roomID, deviceID int64, kind house.DeviceKind) map[string]any {
	return map[string]any{
		"type":        TypeDeviceRemoved,
		"room_id":     roomID,
		"device_id":   deviceID,
		"device_type": string(kind),
	}
}

func alarmUpdateBroadcast(houseID int64, action string, status house.State) map[string]any {
	return map[string]any{
		"type":     TypeAlarmUpdate,
		"house_id": houseID,
		"action":   action,
		"status":   status,
	}
}

func alarmTriggeredBroadcast(houseID int64, status house.State) map[string]any {
	return map[string]any{
		"type":     TypeAlarmTriggered,
		"house_id": houseID,
		"status":   status,
	}
}
