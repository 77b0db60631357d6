package house

import (
	"fmt"
	"sort"
	"strconv"
)

// DeviceKind identifies the concrete type of a device. Kind strings appear
// on the wire in broadcasts and structure commands.
type DeviceKind string

// Device kinds.
const (
	KindLamp         DeviceKind = "lamp"
	KindCeilingLight DeviceKind = "ceiling_light"
	KindLock         DeviceKind = "lock"
	KindBlinds       DeviceKind = "blinds"
	KindAlarm        DeviceKind = "alarm"
)

// roomDeviceKinds are the kinds that live inside rooms and can be created
// through add_device. The alarm is house-level and excluded.
var roomDeviceKinds = map[DeviceKind]bool{
	KindLamp:         true,
	KindCeilingLight: true,
	KindLock:         true,
	KindBlinds:       true,
}

// IsRoomDeviceKind reports whether kind names a room-scoped device type.
func IsRoomDeviceKind(kind DeviceKind) bool {
	return roomDeviceKinds[kind]
}

// Color is a named light color.
type Color string

// Light colors.
const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorWhite  Color = "white"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
)

var validColors = map[Color]bool{
	ColorRed:    true,
	ColorGreen:  true,
	ColorBlue:   true,
	ColorWhite:  true,
	ColorYellow: true,
	ColorPurple: true,
	ColorOrange: true,
}

// IsValidColor reports whether c is a recognised light color.
func IsValidColor(c Color) bool {
	return validColors[c]
}

// Dimmer bounds. Shade levels outside the range clamp on write.
const (
	MinShade = 0
	MaxShade = 100
)

// State is a device or aggregate status snapshot, shaped for direct JSON
// serialisation onto the wire.
type State map[string]any

// Device is the common surface of every room-scoped device. Concrete types
// are Lamp, CeilingLight, Lock and Blinds; the set is closed and the action
// engine switches over it.
type Device interface {
	// DeviceID returns the device's room-scoped id.
	DeviceID() int64

	// Kind returns the device's kind string.
	Kind() DeviceKind

	// Status returns the device's full status snapshot.
	Status() State

	// Clone returns a deep copy used for snapshot/restore around
	// persistence failures.
	Clone() Device
}

// lightCore holds the state shared by lamps and ceiling lights.
type lightCore struct {
	ID    int64
	On    bool
	Shade int
	Color Color
}

func (l *lightCore) flipSwitch()   { l.On = !l.On }
func (l *lightCore) setOn(on bool) { l.On = on }

// setShade sets the dimmer level, clamping to the valid range.
func (l *lightCore) setShade(level int) {
	if level < MinShade {
		level = MinShade
	}
	if level > MaxShade {
		level = MaxShade
	}
	l.Shade = level
}

func (l *lightCore) setColor(c Color) error {
	if !IsValidColor(c) {
		return fmt.Errorf("%w: unknown color %q", ErrInvalidValue, c)
	}
	l.Color = c
	return nil
}

func (l *lightCore) status() State {
	return State{
		"device_id": l.ID,
		"is_on":     l.On,
		"shade":     l.Shade,
		"color":     string(l.Color),
	}
}

// Lamp is a free-standing dimmable colored light. A room may hold any
// number of lamps.
type Lamp struct {
	lightCore
}

// NewLamp creates a lamp with the given state.
func NewLamp(id int64, on bool, shade int, color Color) *Lamp {
	l := &Lamp{lightCore{ID: id, On: on, Color: color}}
	l.setShade(shade)
	return l
}

func (l *Lamp) DeviceID() int64  { return l.ID }
func (l *Lamp) Kind() DeviceKind { return KindLamp }
func (l *Lamp) Status() State    { return l.status() }

// Clone returns a deep copy of the lamp.
func (l *Lamp) Clone() Device {
	cp := *l
	return &cp
}

// CeilingLight is the room's fixed overhead light. At most one per room.
type CeilingLight struct {
	lightCore
}

// NewCeilingLight creates a ceiling light with the given state.
func NewCeilingLight(id int64, on bool, shade int, color Color) *CeilingLight {
	c := &CeilingLight{lightCore{ID: id, On: on, Color: color}}
	c.setShade(shade)
	return c
}

func (c *CeilingLight) DeviceID() int64  { return c.ID }
func (c *CeilingLight) Kind() DeviceKind { return KindCeilingLight }
func (c *CeilingLight) Status() State    { return c.status() }

// Clone returns a deep copy of the ceiling light.
func (c *CeilingLight) Clone() Device {
	cp := *c
	return &cp
}

// Lock is a code-protected door lock. Failed unlock attempts are counted
// on the lock and reported to the house alarm.
type Lock struct {
	ID             int64
	Codes          []string
	IsUnlocked     bool
	FailedAttempts int
}

// NewLock creates a locked lock accepting the given codes.
func NewLock(id int64, codes []string) *Lock {
	return &Lock{ID: id, Codes: append([]string(nil), codes...)}
}

func (l *Lock) DeviceID() int64  { return l.ID }
func (l *Lock) Kind() DeviceKind { return KindLock }

// Status returns the lock's status. Codes never leave the process.
func (l *Lock) Status() State {
	return State{
		"device_id":       l.ID,
		"is_unlocked":     l.IsUnlocked,
		"failed_attempts": l.FailedAttempts,
	}
}

// Clone returns a deep copy of the lock.
func (l *Lock) Clone() Device {
	cp := *l
	cp.Codes = append([]string(nil), l.Codes...)
	return &cp
}

// Engage locks the lock. Idempotent.
func (l *Lock) Engage() { l.IsUnlocked = false }

// TryUnlock attempts to open the lock with a code. A correct code unlocks
// the lock and resets the failure counter; a wrong code leaves it locked
// and increments the counter. Both outcomes are state changes.
func (l *Lock) TryUnlock(code string) bool {
	for _, c := range l.Codes {
		if c == code {
			l.IsUnlocked = true
			l.FailedAttempts = 0
			return true
		}
	}
	l.FailedAttempts++
	return false
}

// Blinds cover a room's window. At most one set per room. IsUp tracks the
// raised/lowered position, IsOpen the slat shutter.
type Blinds struct {
	ID     int64
	IsUp   bool
	IsOpen bool
}

// NewBlinds creates blinds in the given position.
func NewBlinds(id int64, up, open bool) *Blinds {
	return &Blinds{ID: id, IsUp: up, IsOpen: open}
}

func (b *Blinds) DeviceID() int64  { return b.ID }
func (b *Blinds) Kind() DeviceKind { return KindBlinds }

func (b *Blinds) Status() State {
	return State{
		"device_id": b.ID,
		"is_up":     b.IsUp,
		"is_open":   b.IsOpen,
	}
}

// Clone returns a deep copy of the blinds.
func (b *Blinds) Clone() Device {
	cp := *b
	return &cp
}

// Room is a named collection of devices inside a house.
type Room struct {
	ID   int64
	Name string

	Lamps        map[int64]*Lamp
	Locks        map[int64]*Lock
	CeilingLight *CeilingLight
	Blinds       *Blinds

	// NextDeviceID is the room-scoped id the next added device receives.
	// Persisted with the room and re-derived defensively at load time.
	NextDeviceID int64

	// devices indexes every device in the room by id for O(1) lookup.
	// Rebuilt after any structural change.
	devices map[int64]Device
}

// NewRoom creates an empty room.
func NewRoom(id int64, name string) *Room {
	r := &Room{
		ID:           id,
		Name:         name,
		Lamps:        make(map[int64]*Lamp),
		Locks:        make(map[int64]*Lock),
		NextDeviceID: 1,
	}
	r.RebuildDeviceIndex()
	return r
}

// RebuildDeviceIndex recomputes the id → device index from the typed
// collections. Must be called after adding or removing a device.
func (r *Room) RebuildDeviceIndex() {
	idx := make(map[int64]Device, len(r.Lamps)+len(r.Locks)+2)
	for id, l := range r.Lamps {
		idx[id] = l
	}
	for id, l := range r.Locks {
		idx[id] = l
	}
	if r.CeilingLight != nil {
		idx[r.CeilingLight.ID] = r.CeilingLight
	}
	if r.Blinds != nil {
		idx[r.Blinds.ID] = r.Blinds
	}
	r.devices = idx
}

// Device returns the device with the given id, or ErrDeviceNotFound.
func (r *Room) Device(id int64) (Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: device %d in room %d", ErrDeviceNotFound, id, r.ID)
	}
	return d, nil
}

// Devices returns every device in the room, ordered by id.
func (r *Room) Devices() []Device {
	ids := make([]int64, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.devices[id])
	}
	return out
}

// DevicesOfKind returns every device of the given kind in the room,
// ordered by id.
func (r *Room) DevicesOfKind(kind DeviceKind) []Device {
	var out []Device
	for _, d := range r.Devices() {
		if d.Kind() == kind {
			out = append(out, d)
		}
	}
	return out
}

// AddDevice attaches a constructed device to the room's typed collections.
// Enforces the one-ceiling-light and one-blinds invariants.
func (r *Room) AddDevice(d Device) error {
	switch dev := d.(type) {
	case *Lamp:
		r.Lamps[dev.ID] = dev
	case *CeilingLight:
		if r.CeilingLight != nil {
			return ErrCeilingLightExists
		}
		r.CeilingLight = dev
	case *Lock:
		r.Locks[dev.ID] = dev
	case *Blinds:
		if r.Blinds != nil {
			return ErrBlindsExist
		}
		r.Blinds = dev
	default:
		return fmt.Errorf("%w: %T", ErrInvalidDeviceKind, d)
	}
	r.RebuildDeviceIndex()
	return nil
}

// RemoveDevice detaches the device with the given id from the room.
func (r *Room) RemoveDevice(id int64) (Device, error) {
	d, err := r.Device(id)
	if err != nil {
		return nil, err
	}
	switch d.(type) {
	case *Lamp:
		delete(r.Lamps, id)
	case *CeilingLight:
		r.CeilingLight = nil
	case *Lock:
		delete(r.Locks, id)
	case *Blinds:
		r.Blinds = nil
	}
	r.RebuildDeviceIndex()
	return d, nil
}

// State returns the room's full status snapshot, with devices keyed by id.
func (r *Room) State() State {
	devices := make(map[string]any, len(r.devices))
	for _, d := range r.Devices() {
		devices[strconv.FormatInt(d.DeviceID(), 10)] = map[string]any{
			"type":   string(d.Kind()),
			"status": d.Status(),
		}
	}
	return State{
		"room_id": r.ID,
		"name":    r.Name,
		"devices": devices,
	}
}

// House is the root of a cached house tree.
type House struct {
	ID    int64
	Name  string
	Rooms map[int64]*Room
	Alarm *Alarm

	// NextRoomID is the house-scoped id the next added room receives.
	NextRoomID int64
}

// NewHouse creates an empty house.
func NewHouse(id int64, name string) *House {
	return &House{
		ID:         id,
		Name:       name,
		Rooms:      make(map[int64]*Room),
		NextRoomID: 1,
	}
}

// Room returns the room with the given id, or ErrRoomNotFound.
func (h *House) Room(id int64) (*Room, error) {
	r, ok := h.Rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: room %d in house %d", ErrRoomNotFound, id, h.ID)
	}
	return r, nil
}

// RoomsByID returns the house's rooms ordered by id.
func (h *House) RoomsByID() []*Room {
	ids := make([]int64, 0, len(h.Rooms))
	for id := range h.Rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Room, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.Rooms[id])
	}
	return out
}

// AddRoom attaches a room to the house.
func (h *House) AddRoom(r *Room) {
	h.Rooms[r.ID] = r
}

// RemoveRoom detaches the room with the given id.
func (h *House) RemoveRoom(id int64) (*Room, error) {
	r, err := h.Room(id)
	if err != nil {
		return nil, err
	}
	delete(h.Rooms, id)
	return r, nil
}

// State returns the house's full status snapshot: every room with every
// device, plus the alarm.
func (h *House) State() State {
	rooms := make(map[string]any, len(h.Rooms))
	for _, r := range h.RoomsByID() {
		rooms[strconv.FormatInt(r.ID, 10)] = r.State()
	}
	s := State{
		"house_id": h.ID,
		"name":     h.Name,
		"rooms":    rooms,
	}
	if h.Alarm != nil {
		s["alarm"] = h.Alarm.Status()
	}
	return s
}
