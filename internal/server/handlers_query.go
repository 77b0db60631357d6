package server

import (
	"context"
	"fmt"

	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/session"
)

// Query handlers read the cached tree under the cache lock and never
// touch the store. A triggered alarm locks them out like every other
// command: non-admin sessions see nothing until an admin intervenes.

func (d *Dispatcher) handleQueryHouse(ctx context.Context, sess session.Session) (map[string]any, error) {
	var state house.State
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		state = h.State()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{
		"house_id": sess.HouseID,
		"state":    state,
	}), nil
}

func (d *Dispatcher) handleQueryRoom(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.RoomID == 0 {
		return nil, fmt.Errorf("%w: room_id", house.ErrMissingParameter)
	}
	var state house.State
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		room, err := h.Room(req.RoomID)
		if err != nil {
			return err
		}
		state = room.State()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{
		"room_id": req.RoomID,
		"state":   state,
	}), nil
}

// handleDeviceStatus reports one device's status. With no room_id the
// house alarm is the target.
func (d *Dispatcher) handleDeviceStatus(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	var kind house.DeviceKind
	var status house.State
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		if req.RoomID == 0 {
			if h.Alarm == nil {
				return house.ErrNoAlarm
			}
			if req.DeviceID != 0 && req.DeviceID != h.Alarm.ID {
				return fmt.Errorf("%w: device %d is not the alarm", house.ErrDeviceNotFound, req.DeviceID)
			}
			kind = house.KindAlarm
			status = h.Alarm.Status()
			return nil
		}
		room, err := h.Room(req.RoomID)
		if err != nil {
			return err
		}
		dev, err := room.Device(req.DeviceID)
		if err != nil {
			return err
		}
		kind = dev.Kind()
		status = dev.Status()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{
		"device_id":    status["device_id"],
		"device_type":  string(kind),
		"device_state": status,
	}), nil
}

// handleDeviceGroupStatus reports the status of every device of a kind
// across the house.
func (d *Dispatcher) handleDeviceGroupStatus(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	kind := house.DeviceKind(req.DeviceType)
	if !house.IsRoomDeviceKind(kind) {
		return nil, fmt.Errorf("%w: device_type %q", house.ErrInvalidValue, req.DeviceType)
	}
	devices := []map[string]any{}
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		for _, room := range h.RoomsByID() {
			for _, dev := range room.DevicesOfKind(kind) {
				devices = append(devices, map[string]any{
					"room_id":   room.ID,
					"device_id": dev.DeviceID(),
					"status":    dev.Status(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{
		"device_type": string(kind),
		"devices":     devices,
	}), nil
}

func (d *Dispatcher) handleListHouseDevices(ctx context.Context, sess session.Session) (map[string]any, error) {
	devices := []map[string]any{}
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		for _, room := range h.RoomsByID() {
			devices = append(devices, listRoomEntries(room)...)
		}
		if h.Alarm != nil {
			devices = append(devices, map[string]any{
				"room_id":     int64(0),
				"device_id":   h.Alarm.ID,
				"device_type": string(house.KindAlarm),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{"devices": devices}), nil
}

func (d *Dispatcher) handleListRoomDevices(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.RoomID == 0 {
		return nil, fmt.Errorf("%w: room_id", house.ErrMissingParameter)
	}
	var devices []map[string]any
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		room, err := h.Room(req.RoomID)
		if err != nil {
			return err
		}
		devices = listRoomEntries(room)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{
		"room_id": req.RoomID,
		"devices": devices,
	}), nil
}

func (d *Dispatcher) handleListGroupDevices(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	kind := house.DeviceKind(req.DeviceType)
	if !house.IsRoomDeviceKind(kind) {
		return nil, fmt.Errorf("%w: device_type %q", house.ErrInvalidValue, req.DeviceType)
	}
	devices := []map[string]any{}
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		for _, room := range h.RoomsByID() {
			for _, dev := range room.DevicesOfKind(kind) {
				devices = append(devices, map[string]any{
					"room_id":     room.ID,
					"device_id":   dev.DeviceID(),
					"device_type": string(dev.Kind()),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{
		"device_type": string(kind),
		"devices":     devices,
	}), nil
}

// listRoomEntries flattens a room's devices into listing entries.
func listRoomEntries(room *house.Room) []map[string]any {
	out := make([]map[string]any, 0, len(room.Devices()))
	for _, dev := range room.Devices() {
		out = append(out, map[string]any{
			"room_id":     room.ID,
			"device_id":   dev.DeviceID(),
			"device_type": string(dev.Kind()),
		})
	}
	return out
}
