package house

import "fmt"

// Alarm is the house-level security alarm. It is armed or disarmed, and
// while armed it trips when the accumulated failed unlock attempts across
// the house's locks reach its threshold.
//
// Failure counters are tracked per lock, keyed "<room_id>:<lock_id>", and
// the trip decision sums all counters. Counters survive restarts: they are
// persisted with the alarm and reset only when it disarms.
type Alarm struct {
	ID          int64
	Code        int
	IsArmed     bool
	IsTriggered bool

	// Threshold is the total failed-attempt count that trips the alarm.
	// Always >= 1.
	Threshold int

	// FailedByLock maps "<room_id>:<lock_id>" to that lock's failed
	// unlock attempts since the alarm was last disarmed.
	FailedByLock map[string]int
}

// DefaultThreshold is the failure threshold a new alarm starts with.
const DefaultThreshold = 3

// NewAlarm creates a disarmed alarm with the default threshold.
func NewAlarm(id int64, code int) *Alarm {
	return &Alarm{
		ID:           id,
		Code:         code,
		Threshold:    DefaultThreshold,
		FailedByLock: make(map[string]int),
	}
}

// LockKey builds the failure-counter key for a lock.
func LockKey(roomID, lockID int64) string {
	return fmt.Sprintf("%d:%d", roomID, lockID)
}

// Clone returns a deep copy used for snapshot/restore around persistence
// failures.
func (a *Alarm) Clone() *Alarm {
	cp := *a
	cp.FailedByLock = make(map[string]int, len(a.FailedByLock))
	for k, v := range a.FailedByLock {
		cp.FailedByLock[k] = v
	}
	return &cp
}

// Status returns the alarm's status snapshot. The code never leaves the
// process.
func (a *Alarm) Status() State {
	return State{
		"device_id":       a.ID,
		"is_armed":        a.IsArmed,
		"is_triggered":    a.IsTriggered,
		"threshold":       a.Threshold,
		"failed_attempts": a.TotalFailedAttempts(),
	}
}

// TotalFailedAttempts sums the per-lock failure counters.
func (a *Alarm) TotalFailedAttempts() int {
	total := 0
	for _, n := range a.FailedByLock {
		total += n
	}
	return total
}

// Arm arms the alarm. Idempotent.
func (a *Alarm) Arm() { a.IsArmed = true }

// Disarm disarms the alarm, silences it and clears all failure counters.
func (a *Alarm) Disarm() {
	a.IsArmed = false
	a.IsTriggered = false
	a.FailedByLock = make(map[string]int)
}

// Trigger trips the alarm manually. Returns ErrAlarmNotArmed if the alarm
// is disarmed.
func (a *Alarm) Trigger() error {
	if !a.IsArmed {
		return ErrAlarmNotArmed
	}
	a.IsTriggered = true
	return nil
}

// Stop silences a tripped alarm without disarming it. Failure counters
// are kept.
func (a *Alarm) Stop() { a.IsTriggered = false }

// NoteFailedUnlock records a failed unlock attempt on the given lock.
// Counting only happens while armed. Returns true when this attempt
// transitions the alarm from quiet to triggered.
func (a *Alarm) NoteFailedUnlock(roomID, lockID int64) bool {
	if !a.IsArmed {
		return false
	}
	if a.FailedByLock == nil {
		a.FailedByLock = make(map[string]int)
	}
	a.FailedByLock[LockKey(roomID, lockID)]++
	if !a.IsTriggered && a.TotalFailedAttempts() >= a.Threshold {
		a.IsTriggered = true
		return true
	}
	return false
}

// SetThreshold updates the failure threshold. Returns ErrInvalidValue for
// values below 1.
func (a *Alarm) SetThreshold(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: threshold must be at least 1, got %d", ErrInvalidValue, n)
	}
	a.Threshold = n
	return nil
}
