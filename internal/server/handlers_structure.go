package server

import (
	"context"
	"fmt"

	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/session"
)

// Structure handlers change the shape of the house: rooms and devices
// come and go, the alarm threshold moves. Every change commits to the
// store before the cache mutates, so a failed write leaves the tree
// untouched and the id allocators only advance on success.

func (d *Dispatcher) handleAddRoom(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.RoomName == "" {
		return nil, fmt.Errorf("%w: room_name", house.ErrMissingParameter)
	}

	var roomID int64
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		room := house.NewRoom(h.NextRoomID, req.RoomName)
		if err := d.houseRepo.InsertRoom(ctx, h.ID, room); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		h.NextRoomID = room.ID + 1
		h.AddRoom(room)
		roomID = room.ID

		d.broadcast(ctx, h.ID, roomAddedBroadcast(room.ID, room.Name), sess.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("room added",
		"house_id", sess.HouseID, "room_id", roomID, "user_id", sess.UserID)
	return successResponse(map[string]any{"room_id": roomID}), nil
}

func (d *Dispatcher) handleRemoveRoom(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.RoomID == 0 {
		return nil, fmt.Errorf("%w: room_id", house.ErrMissingParameter)
	}

	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		if _, err := h.Room(req.RoomID); err != nil {
			return err
		}
		// The store cascades room deletion to the room's devices.
		if err := d.houseRepo.DeleteRoom(ctx, h.ID, req.RoomID); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		if _, err := h.RemoveRoom(req.RoomID); err != nil {
			return err
		}
		d.broadcast(ctx, h.ID, roomRemovedBroadcast(req.RoomID), sess.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("room removed",
		"house_id", sess.HouseID, "room_id", req.RoomID, "user_id", sess.UserID)
	return successResponse(nil), nil
}

func (d *Dispatcher) handleAddDevice(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.RoomID == 0 {
		return nil, fmt.Errorf("%w: room_id", house.ErrMissingParameter)
	}
	kind := house.DeviceKind(req.DeviceType)
	if !house.IsRoomDeviceKind(kind) {
		return nil, fmt.Errorf("%w: device_type %q", house.ErrInvalidValue, req.DeviceType)
	}

	var deviceID int64
	var status house.State
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		room, err := h.Room(req.RoomID)
		if err != nil {
			return err
		}
		if kind == house.KindCeilingLight && room.CeilingLight != nil {
			return house.ErrCeilingLightExists
		}
		if kind == house.KindBlinds && room.Blinds != nil {
			return house.ErrBlindsExist
		}

		dev, err := buildDevice(kind, room.NextDeviceID, req.Attributes)
		if err != nil {
			return err
		}
		if err := d.houseRepo.InsertDevice(ctx, h.ID, room.ID, dev); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		room.NextDeviceID = dev.DeviceID() + 1
		if err := room.AddDevice(dev); err != nil {
			return err
		}
		deviceID = dev.DeviceID()
		status = dev.Status()

		d.broadcast(ctx, h.ID, deviceAddedBroadcast(room.ID, kind, status), sess.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("device added",
		"house_id", sess.HouseID, "room_id", req.RoomID,
		"device_id", deviceID, "device_type", string(kind), "user_id", sess.UserID)
	return successResponse(map[string]any{
		"device_id":    deviceID,
		"device_type":  string(kind),
		"device_state": status,
	}), nil
}

func (d *Dispatcher) handleRemoveDevice(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.RoomID == 0 {
		return nil, fmt.Errorf("%w: room_id", house.ErrMissingParameter)
	}
	if req.DeviceID == 0 {
		return nil, fmt.Errorf("%w: device_id", house.ErrMissingParameter)
	}

	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		room, err := h.Room(req.RoomID)
		if err != nil {
			return err
		}
		dev, err := room.Device(req.DeviceID)
		if err != nil {
			return err
		}
		if err := d.houseRepo.DeleteDevice(ctx, h.ID, room.ID, dev); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		if _, err := room.RemoveDevice(req.DeviceID); err != nil {
			return err
		}
		d.broadcast(ctx, h.ID, deviceRemovedBroadcast(room.ID, req.DeviceID, dev.Kind()), sess.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("device removed",
		"house_id", sess.HouseID, "room_id", req.RoomID,
		"device_id", req.DeviceID, "user_id", sess.UserID)
	return successResponse(nil), nil
}

func (d *Dispatcher) handleSetAlarmThreshold(ctx context.Context, sess session.Session, req *Request) (map[string]any, error) {
	if req.Threshold == nil {
		return nil, fmt.Errorf("%w: threshold", house.ErrMissingParameter)
	}

	var status house.State
	err := d.cache.Do(ctx, sess.HouseID, func(h *house.House) error {
		if err := checkAlarmLockout(h, sess.Role); err != nil {
			return err
		}
		if h.Alarm == nil {
			return house.ErrNoAlarm
		}
		snapshot := h.Alarm.Clone()
		if err := h.Alarm.SetThreshold(*req.Threshold); err != nil {
			return err
		}
		if err := d.houseRepo.UpdateAlarm(ctx, h.ID, h.Alarm); err != nil {
			*h.Alarm = *snapshot
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		status = h.Alarm.Status()
		d.broadcast(ctx, h.ID, alarmUpdateBroadcast(h.ID, "set_threshold", status), sess.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return successResponse(map[string]any{"device_state": status}), nil
}

// buildDevice constructs a new room device from add_device attributes,
// applying per-kind defaults for anything unset.
func buildDevice(kind house.DeviceKind, id int64, attrs DeviceAttributes) (house.Device, error) {
	on := false
	if attrs.IsOn != nil {
		on = *attrs.IsOn
	}
	shade := house.MaxShade
	if attrs.Shade != nil {
		shade = *attrs.Shade
	}
	color := house.ColorWhite
	if attrs.Color != "" {
		color = house.Color(attrs.Color)
		if !house.IsValidColor(color) {
			return nil, fmt.Errorf("%w: unknown color %q", house.ErrInvalidValue, attrs.Color)
		}
	}

	switch kind {
	case house.KindLamp:
		return house.NewLamp(id, on, shade, color), nil
	case house.KindCeilingLight:
		return house.NewCeilingLight(id, on, shade, color), nil
	case house.KindLock:
		return house.NewLock(id, attrs.Codes), nil
	case house.KindBlinds:
		up := true
		if attrs.IsUp != nil {
			up = *attrs.IsUp
		}
		open := false
		if attrs.IsOpen != nil {
			open = *attrs.IsOpen
		}
		return house.NewBlinds(id, up, open), nil
	default:
		return nil, fmt.Errorf("%w: %s", house.ErrInvalidDeviceKind, kind)
	}
}
