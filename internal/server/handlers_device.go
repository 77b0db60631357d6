package server

import (
	"context"
	"fmt"

	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/session"
)

// handleDeviceAction applies one action to one device, persists the
// result, answers the caller and broadcasts the change to the rest of the
// house. Alarm verbs target the house alarm and need no room_id; every
// other action addresses a room device.
func (d *Dispatcher) handleDeviceAction(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.Action == "" {
		return nil, fmt.Errorf("%w: action", house.ErrMissingParameter)
	}
	action := house.Action(req.Action)
	if !house.IsAlarmAction(action) && req.RoomID == 0 {
		return nil, fmt.Errorf("%w: room_id", house.ErrMissingParameter)
	}
	params := house.ActionParams{
		Level: req.Level,
		Color: house.Color(req.Color),
		Code:  req.Code,
	}

	var resp map[string]any
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		if house.IsAlarmAction(action) {
			out, err := d.applyAlarmAction(ctx, sess, h, action, req.DeviceID)
			resp = out
			return err
		}
		out, err := d.applyRoomDeviceAction(ctx, sess, h, req.RoomID, req.DeviceID, action, params)
		resp = out
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// applyAlarmAction runs an arm/disarm/trigger/stop verb against the house
// alarm. Caller holds the cache lock.
func (d *Dispatcher) applyAlarmAction(ctx context.Context, sess session.Session, h *house.House, action house.Action, deviceID int64) (map[string]any, error) {
	alarm := h.Alarm
	if alarm == nil {
		return nil, house.ErrNoAlarm
	}
	if deviceID != 0 && deviceID != alarm.ID {
		return nil, fmt.Errorf("%w: device %d is not the alarm", house.ErrDeviceNotFound, deviceID)
	}

	snapshot := alarm.Clone()
	wasTriggered := alarm.IsTriggered

	if err := house.ApplyAlarmAction(alarm, action); err != nil {
		return nil, err
	}

	if err := d.houseRepo.UpdateAlarm(ctx, h.ID, alarm); err != nil {
		*alarm = *snapshot
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	status := alarm.Status()
	d.broadcast(ctx, h.ID, alarmUpdateBroadcast(h.ID, string(action), status), sess.ID)
	if !wasTriggered && alarm.IsTriggered {
		d.broadcast(ctx, h.ID, alarmTriggeredBroadcast(h.ID, status), "")
	}
	d.exportDeviceState(h.ID, 0, house.KindAlarm, string(action), status)

	return successResponse(map[string]any{"device_state": status}), nil
}

// applyRoomDeviceAction runs an action against a room device. A wrong
// unlock code is still a successful command: the lock's failure counter
// advances, the alarm is notified, and the resulting state persists and
// broadcasts like any other change. Caller holds the cache lock.
func (d *Dispatcher) applyRoomDeviceAction(ctx context.Context, sess session.Session, h *house.House, roomID, deviceID int64, action house.Action, params house.ActionParams) (map[string]any, error) {
	room, err := h.Room(roomID)
	if err != nil {
		return nil, err
	}
	dev, err := room.Device(deviceID)
	if err != nil {
		return nil, err
	}

	snapshot := dev.Clone()
	outcome, err := house.ApplyDeviceAction(dev, action, params)
	if err != nil {
		return nil, err
	}

	var alarmSnapshot *house.Alarm
	triggeredNow := false
	if outcome.FailedUnlock && h.Alarm != nil {
		alarmSnapshot = h.Alarm.Clone()
		triggeredNow = h.Alarm.NoteFailedUnlock(roomID, deviceID)
	}

	if err := d.houseRepo.UpdateDevice(ctx, h.ID, roomID, dev); err != nil {
		restoreDevice(dev, snapshot)
		if alarmSnapshot != nil {
			*h.Alarm = *alarmSnapshot
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if alarmSnapshot != nil {
		if err := d.houseRepo.UpdateAlarm(ctx, h.ID, h.Alarm); err != nil {
			// Undo both sides; the device row is re-written best-effort
			// so the store does not drift from the cache.
			*h.Alarm = *alarmSnapshot
			restoreDevice(dev, snapshot)
			if rerr := d.houseRepo.UpdateDevice(ctx, h.ID, roomID, dev); rerr != nil {
				d.logger.Error("device rollback write failed",
					"house_id", h.ID, "room_id", roomID, "device_id", deviceID, "error", rerr)
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
	}

	status := dev.Status()
	d.broadcast(ctx, h.ID, deviceUpdateBroadcast(dev.Kind(), roomID, string(action), status), sess.ID)
	if triggeredNow {
		d.broadcast(ctx, h.ID, alarmTriggeredBroadcast(h.ID, h.Alarm.Status()), "")
	}
	d.exportDeviceState(h.ID, roomID, dev.Kind(), string(action), status)

	return successResponse(map[string]any{"device_state": status}), nil
}

// handleDeviceGroupAction applies one action to every device of a kind in
// the house. Per-device failures are collected, not fatal: the response
// reports succeeded and failed lists and the batch broadcast carries both.
func (d *Dispatcher) handleDeviceGroupAction(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.Action == "" {
		return nil, fmt.Errorf("%w: action", house.ErrMissingParameter)
	}
	kind := house.DeviceKind(req.DeviceType)
	if !house.IsRoomDeviceKind(kind) {
		return nil, fmt.Errorf("%w: device_type %q", house.ErrInvalidValue, req.DeviceType)
	}
	action := house.Action(req.Action)
	params := house.ActionParams{
		Level: req.Level,
		Color: house.Color(req.Color),
		Code:  req.Code,
	}

	var resp map[string]any
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}

		var alarmSnapshot *house.Alarm
		if h.Alarm != nil {
			alarmSnapshot = h.Alarm.Clone()
		}
		triggeredNow := false
		alarmDirty := false

		succeeded := []map[string]any{}
		failed := []map[string]any{}

		for _, room := range h.RoomsByID() {
			for _, dev := range room.DevicesOfKind(kind) {
				snapshot := dev.Clone()
				outcome, err := house.ApplyDeviceAction(dev, action, params)
				if err != nil {
					failed = append(failed, map[string]any{
						"room_id":   room.ID,
						"device_id": dev.DeviceID(),
						"code":      errorCode(err),
						"message":   err.Error(),
					})
					continue
				}
				if outcome.FailedUnlock && h.Alarm != nil {
					alarmDirty = true
					if h.Alarm.NoteFailedUnlock(room.ID, dev.DeviceID()) {
						triggeredNow = true
					}
				}
				if err := d.houseRepo.UpdateDevice(ctx, h.ID, room.ID, dev); err != nil {
					restoreDevice(dev, snapshot)
					failed = append(failed, map[string]any{
						"room_id":   room.ID,
						"device_id": dev.DeviceID(),
						"code":      CodePersistenceFailure,
						"message":   "state change could not be saved",
					})
					continue
				}
				succeeded = append(succeeded, map[string]any{
					"room_id":   room.ID,
					"device_id": dev.DeviceID(),
					"status":    dev.Status(),
				})
				d.exportDeviceState(h.ID, room.ID, kind, string(action), dev.Status())
			}
		}

		if alarmDirty {
			if err := d.houseRepo.UpdateAlarm(ctx, h.ID, h.Alarm); err != nil {
				d.logger.Error("alarm counter write failed",
					"house_id", h.ID, "error", err)
				*h.Alarm = *alarmSnapshot
				triggeredNow = false
			}
		}

		if len(succeeded) > 0 {
			d.broadcast(ctx, h.ID, groupUpdateBroadcast(kind, string(action), succeeded, failed), sess.ID)
		}
		if triggeredNow {
			d.broadcast(ctx, h.ID, alarmTriggeredBroadcast(h.ID, h.Alarm.Status()), "")
		}

		resp = successResponse(map[string]any{
			"succeeded": succeeded,
			"failed":    failed,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// restoreDevice copies a snapshot's state back into the live device held
// by the room, undoing an in-memory mutation after a failed persist.
func restoreDevice(dst, snapshot house.Device) {
	switch d := dst.(type) {
	case *house.Lamp:
		*d = *snapshot.(*house.Lamp) //nolint:errcheck // snapshot is a clone of dst
	case *house.CeilingLight:
		*d = *snapshot.(*house.CeilingLight) //nolint:errcheck // snapshot is a clone of dst
	case *house.Lock:
		*d = *snapshot.(*house.Lock) //nolint:errcheck // snapshot is a clone of dst
	case *house.Blinds:
		*d = *snapshot.(*house.Blinds) //nolint:errcheck // snapshot is a clone of dst
	}
}

// broadcast publishes to the house audience, logging delivery problems
// instead of failing the command.
func (d *Dispatcher) broadcast(ctx context.Context, houseID int64, message map[string]any, excludeSessionID string) {
	if err := d.hub.Publish(ctx, houseID, message, excludeSessionID); err != nil {
		d.logger.Warn("broadcast failed",
			"house_id", houseID, "type", message["type"], "error", err)
	}
}
