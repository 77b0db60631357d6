package house

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository defines the interface for house-tree persistence. The store
// is authoritative; the cache is rebuilt from it via LoadHouse and every
// mutation is written through before it is considered committed.
type Repository interface {
	// LoadHouse reads the full house tree: rooms, devices and alarm.
	// Returns ErrHouseNotFound if the house does not exist.
	LoadHouse(ctx context.Context, houseID int64) (*House, error)

	// CreateHouse inserts a new empty house and returns it with its
	// allocated id.
	CreateHouse(ctx context.Context, name string) (*House, error)

	// CreateAlarm installs the house alarm. One per house.
	CreateAlarm(ctx context.Context, houseID int64, alarm *Alarm) error

	// InsertRoom persists a new room and advances the house's room id
	// allocator to room.ID+1 in the same transaction.
	InsertRoom(ctx context.Context, houseID int64, room *Room) error

	// DeleteRoom removes a room; its devices go with it.
	// Returns ErrRoomNotFound if the room does not exist.
	DeleteRoom(ctx context.Context, houseID, roomID int64) error

	// InsertDevice persists a new room device and advances the room's
	// device id allocator to device.DeviceID()+1 in the same transaction.
	InsertDevice(ctx context.Context, houseID, roomID int64, device Device) error

	// DeleteDevice removes a room device.
	// Returns ErrDeviceNotFound if the device does not exist.
	DeleteDevice(ctx context.Context, houseID, roomID int64, device Device) error

	// UpdateDevice writes a room device's mutable state.
	UpdateDevice(ctx context.Context, houseID, roomID int64, device Device) error

	// UpdateAlarm writes the house alarm's mutable state, including the
	// per-lock failure counters.
	UpdateAlarm(ctx context.Context, houseID int64, alarm *Alarm) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed house repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// LoadHouse reads the full house tree from the store.
func (r *SQLiteRepository) LoadHouse(ctx context.Context, houseID int64) (*House, error) {
	h := &House{Rooms: make(map[int64]*Room)}

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, next_room_id FROM houses WHERE id = ?", houseID,
	).Scan(&h.ID, &h.Name, &h.NextRoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: house %d", ErrHouseNotFound, houseID)
		}
		return nil, fmt.Errorf("querying house: %w", err)
	}

	if err := r.loadRooms(ctx, h); err != nil {
		return nil, err
	}
	if err := r.loadLamps(ctx, h); err != nil {
		return nil, err
	}
	if err := r.loadCeilingLights(ctx, h); err != nil {
		return nil, err
	}
	if err := r.loadLocks(ctx, h); err != nil {
		return nil, err
	}
	if err := r.loadBlinds(ctx, h); err != nil {
		return nil, err
	}
	if err := r.loadAlarm(ctx, h); err != nil {
		return nil, err
	}

	// Re-derive the id allocators defensively: the stored next id must
	// stay ahead of every id actually in use.
	for _, room := range h.Rooms {
		room.RebuildDeviceIndex()
		for id := range room.devices {
			if id >= room.NextDeviceID {
				room.NextDeviceID = id + 1
			}
		}
		if room.ID >= h.NextRoomID {
			h.NextRoomID = room.ID + 1
		}
	}

	return h, nil
}

func (r *SQLiteRepository) loadRooms(ctx context.Context, h *House) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, next_device_id FROM rooms WHERE house_id = ?", h.ID)
	if err != nil {
		return fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		room := &Room{
			Lamps: make(map[int64]*Lamp),
			Locks: make(map[int64]*Lock),
		}
		if err := rows.Scan(&room.ID, &room.Name, &room.NextDeviceID); err != nil {
			return fmt.Errorf("scanning room: %w", err)
		}
		h.Rooms[room.ID] = room
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadLamps(ctx context.Context, h *House) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT room_id, id, is_on, shade, color FROM lamps WHERE house_id = ?", h.ID)
	if err != nil {
		return fmt.Errorf("querying lamps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID int64
		lamp := &Lamp{}
		var color string
		if err := rows.Scan(&roomID, &lamp.ID, &lamp.On, &lamp.Shade, &color); err != nil {
			return fmt.Errorf("scanning lamp: %w", err)
		}
		lamp.Color = Color(color)
		if room, ok := h.Rooms[roomID]; ok {
			room.Lamps[lamp.ID] = lamp
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadCeilingLights(ctx context.Context, h *House) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT room_id, id, is_on, shade, color FROM ceiling_lights WHERE house_id = ?", h.ID)
	if err != nil {
		return fmt.Errorf("querying ceiling lights: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID int64
		light := &CeilingLight{}
		var color string
		if err := rows.Scan(&roomID, &light.ID, &light.On, &light.Shade, &color); err != nil {
			return fmt.Errorf("scanning ceiling light: %w", err)
		}
		light.Color = Color(color)
		if room, ok := h.Rooms[roomID]; ok {
			room.CeilingLight = light
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadLocks(ctx context.Context, h *House) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT room_id, id, codes, is_unlocked, failed_attempts FROM locks WHERE house_id = ?", h.ID)
	if err != nil {
		return fmt.Errorf("querying locks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID int64
		lock := &Lock{}
		var codes string
		if err := rows.Scan(&roomID, &lock.ID, &codes, &lock.IsUnlocked, &lock.FailedAttempts); err != nil {
			return fmt.Errorf("scanning lock: %w", err)
		}
		if err := json.Unmarshal([]byte(codes), &lock.Codes); err != nil {
			return fmt.Errorf("decoding lock codes: %w", err)
		}
		if room, ok := h.Rooms[roomID]; ok {
			room.Locks[lock.ID] = lock
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadBlinds(ctx context.Context, h *House) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT room_id, id, is_up, is_open FROM blinds WHERE house_id = ?", h.ID)
	if err != nil {
		return fmt.Errorf("querying blinds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID int64
		blinds := &Blinds{}
		if err := rows.Scan(&roomID, &blinds.ID, &blinds.IsUp, &blinds.IsOpen); err != nil {
			return fmt.Errorf("scanning blinds: %w", err)
		}
		if room, ok := h.Rooms[roomID]; ok {
			room.Blinds = blinds
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadAlarm(ctx context.Context, h *House) error {
	alarm := &Alarm{}
	var failed string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, code, is_armed, is_triggered, threshold, failed_attempts FROM alarms WHERE house_id = ?",
		h.ID,
	).Scan(&alarm.ID, &alarm.Code, &alarm.IsArmed, &alarm.IsTriggered, &alarm.Threshold, &failed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // no alarm installed
		}
		return fmt.Errorf("querying alarm: %w", err)
	}
	if err := json.Unmarshal([]byte(failed), &alarm.FailedByLock); err != nil {
		return fmt.Errorf("decoding alarm counters: %w", err)
	}
	if alarm.FailedByLock == nil {
		alarm.FailedByLock = make(map[string]int)
	}
	h.Alarm = alarm
	return nil
}

// CreateHouse inserts a new empty house.
func (r *SQLiteRepository) CreateHouse(ctx context.Context, name string) (*House, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO houses (name, next_room_id) VALUES (?, 1)", name)
	if err != nil {
		return nil, fmt.Errorf("creating house: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading house id: %w", err)
	}
	return NewHouse(id, name), nil
}

// CreateAlarm installs the house alarm.
func (r *SQLiteRepository) CreateAlarm(ctx context.Context, houseID int64, alarm *Alarm) error {
	failed, err := json.Marshal(alarm.FailedByLock)
	if err != nil {
		return fmt.Errorf("encoding alarm counters: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO alarms (house_id, id, code, is_armed, is_triggered, threshold, failed_attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		houseID, alarm.ID, alarm.Code, alarm.IsArmed, alarm.IsTriggered, alarm.Threshold, string(failed),
	)
	if err != nil {
		return fmt.Errorf("creating alarm: %w", err)
	}
	return nil
}

// InsertRoom persists a new room and advances the house's room allocator.
func (r *SQLiteRepository) InsertRoom(ctx context.Context, houseID int64, room *Room) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		"INSERT INTO rooms (house_id, id, name, next_device_id) VALUES (?, ?, ?, ?)",
		houseID, room.ID, room.Name, room.NextDeviceID,
	)
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE houses SET next_room_id = ? WHERE id = ?", room.ID+1, houseID)
	if err != nil {
		return fmt.Errorf("advancing room allocator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing room insert: %w", err)
	}
	return nil
}

// DeleteRoom removes a room and, via foreign keys, all of its devices.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, houseID, roomID int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM rooms WHERE house_id = ? AND id = ?", houseID, roomID)
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports
		return fmt.Errorf("%w: room %d in house %d", ErrRoomNotFound, roomID, houseID)
	}
	return nil
}

// InsertDevice persists a new room device and advances the room's device
// allocator.
func (r *SQLiteRepository) InsertDevice(ctx context.Context, houseID, roomID int64, device Device) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	switch d := device.(type) {
	case *Lamp:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO lamps (house_id, room_id, id, is_on, shade, color) VALUES (?, ?, ?, ?, ?, ?)",
			houseID, roomID, d.ID, d.On, d.Shade, string(d.Color))
	case *CeilingLight:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO ceiling_lights (house_id, room_id, id, is_on, shade, color) VALUES (?, ?, ?, ?, ?, ?)",
			houseID, roomID, d.ID, d.On, d.Shade, string(d.Color))
	case *Lock:
		var codes []byte
		codes, err = json.Marshal(d.Codes)
		if err != nil {
			return fmt.Errorf("encoding lock codes: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO locks (house_id, room_id, id, codes, is_unlocked, failed_attempts) VALUES (?, ?, ?, ?, ?, ?)",
			houseID, roomID, d.ID, string(codes), d.IsUnlocked, d.FailedAttempts)
	case *Blinds:
		_, err = tx.ExecContext(ctx,
			"INSERT INTO blinds (house_id, room_id, id, is_up, is_open) VALUES (?, ?, ?, ?, ?)",
			houseID, roomID, d.ID, d.IsUp, d.IsOpen)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidDeviceKind, device)
	}
	if err != nil {
		return fmt.Errorf("inserting %s: %w", device.Kind(), err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE rooms SET next_device_id = ? WHERE house_id = ? AND id = ?",
		device.DeviceID()+1, houseID, roomID)
	if err != nil {
		return fmt.Errorf("advancing device allocator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device insert: %w", err)
	}
	return nil
}

// DeleteDevice removes a room device.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, houseID, roomID int64, device Device) error {
	table, err := deviceTable(device.Kind())
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE house_id = ? AND room_id = ? AND id = ?",
		houseID, roomID, device.DeviceID())
	if err != nil {
		return fmt.Errorf("deleting %s: %w", device.Kind(), err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports
		return fmt.Errorf("%w: device %d in room %d", ErrDeviceNotFound, device.DeviceID(), roomID)
	}
	return nil
}

// UpdateDevice writes a room device's mutable state.
func (r *SQLiteRepository) UpdateDevice(ctx context.Context, houseID, roomID int64, device Device) error {
	var err error
	switch d := device.(type) {
	case *Lamp:
		_, err = r.db.ExecContext(ctx,
			"UPDATE lamps SET is_on = ?, shade = ?, color = ? WHERE house_id = ? AND room_id = ? AND id = ?",
			d.On, d.Shade, string(d.Color), houseID, roomID, d.ID)
	case *CeilingLight:
		_, err = r.db.ExecContext(ctx,
			"UPDATE ceiling_lights SET is_on = ?, shade = ?, color = ? WHERE house_id = ? AND room_id = ? AND id = ?",
			d.On, d.Shade, string(d.Color), houseID, roomID, d.ID)
	case *Lock:
		var codes []byte
		codes, err = json.Marshal(d.Codes)
		if err != nil {
			return fmt.Errorf("encoding lock codes: %w", err)
		}
		_, err = r.db.ExecContext(ctx,
			"UPDATE locks SET codes = ?, is_unlocked = ?, failed_attempts = ? WHERE house_id = ? AND room_id = ? AND id = ?",
			string(codes), d.IsUnlocked, d.FailedAttempts, houseID, roomID, d.ID)
	case *Blinds:
		_, err = r.db.ExecContext(ctx,
			"UPDATE blinds SET is_up = ?, is_open = ? WHERE house_id = ? AND room_id = ? AND id = ?",
			d.IsUp, d.IsOpen, houseID, roomID, d.ID)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidDeviceKind, device)
	}
	if err != nil {
		return fmt.Errorf("updating %s: %w", device.Kind(), err)
	}
	return nil
}

// UpdateAlarm writes the house alarm's mutable state.
func (r *SQLiteRepository) UpdateAlarm(ctx context.Context, houseID int64, alarm *Alarm) error {
	failed, err := json.Marshal(alarm.FailedByLock)
	if err != nil {
		return fmt.Errorf("encoding alarm counters: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE alarms SET code = ?, is_armed = ?, is_triggered = ?, threshold = ?, failed_attempts = ? WHERE house_id = ?",
		alarm.Code, alarm.IsArmed, alarm.IsTriggered, alarm.Threshold, string(failed), houseID)
	if err != nil {
		return fmt.Errorf("updating alarm: %w", err)
	}
	return nil
}

// deviceTable maps a room-device kind to its table name. Used only with
// kinds from the closed set, never with external input.
func deviceTable(kind DeviceKind) (string, error) {
	switch kind {
	case KindLamp:
		return "lamps", nil
	case KindCeilingLight:
		return "ceiling_lights", nil
	case KindLock:
		return "locks", nil
	case KindBlinds:
		return "blinds", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidDeviceKind, kind)
	}
}
