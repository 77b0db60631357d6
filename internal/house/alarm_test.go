package house

import (
	"errors"
	"testing"
)

func TestAlarmTripSumsAcrossLocks(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	alarm.Arm()
	alarm.Threshold = 3

	if alarm.NoteFailedUnlock(1, 2) {
		t.Fatal("tripped after 1 failure with threshold 3")
	}
	if alarm.NoteFailedUnlock(2, 5) {
		t.Fatal("tripped after 2 failures with threshold 3")
	}
	// Third failure, on yet another lock, crosses the summed threshold.
	if !alarm.NoteFailedUnlock(3, 1) {
		t.Fatal("did not trip at the summed threshold")
	}
	if !alarm.IsTriggered {
		t.Error("IsTriggered = false after trip")
	}
	if got := alarm.TotalFailedAttempts(); got != 3 {
		t.Errorf("TotalFailedAttempts() = %d, want 3", got)
	}
}

func TestAlarmTripReportsOnlyTheTransition(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	alarm.Arm()
	alarm.Threshold = 1

	if !alarm.NoteFailedUnlock(1, 1) {
		t.Fatal("first failure at threshold 1 must trip")
	}
	// Already triggered: further failures count but do not re-trip.
	if alarm.NoteFailedUnlock(1, 1) {
		t.Error("second failure reported a fresh trip")
	}
	if got := alarm.TotalFailedAttempts(); got != 2 {
		t.Errorf("TotalFailedAttempts() = %d, want 2", got)
	}
}

func TestAlarmIgnoresFailuresWhileDisarmed(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	alarm.Threshold = 1

	if alarm.NoteFailedUnlock(1, 1) {
		t.Fatal("disarmed alarm tripped")
	}
	if got := alarm.TotalFailedAttempts(); got != 0 {
		t.Errorf("disarmed alarm counted failures: %d", got)
	}
}

func TestAlarmDisarmClearsCountersAndSiren(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	alarm.Arm()
	alarm.Threshold = 1
	alarm.NoteFailedUnlock(1, 1)

	alarm.Disarm()

	if alarm.IsArmed || alarm.IsTriggered {
		t.Errorf("after disarm: armed=%v triggered=%v, want both false", alarm.IsArmed, alarm.IsTriggered)
	}
	if got := alarm.TotalFailedAttempts(); got != 0 {
		t.Errorf("TotalFailedAttempts() = %d after disarm, want 0", got)
	}
}

func TestAlarmStopKeepsCounters(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	alarm.Arm()
	alarm.Threshold = 2
	alarm.NoteFailedUnlock(1, 1)
	alarm.NoteFailedUnlock(1, 1)

	alarm.Stop()

	if alarm.IsTriggered {
		t.Error("still triggered after stop")
	}
	if !alarm.IsArmed {
		t.Error("stop disarmed the alarm")
	}
	if got := alarm.TotalFailedAttempts(); got != 2 {
		t.Errorf("TotalFailedAttempts() = %d after stop, want 2", got)
	}
}

func TestAlarmManualTriggerRequiresArmed(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	if err := alarm.Trigger(); !errors.Is(err, ErrAlarmNotArmed) {
		t.Fatalf("Trigger() on disarmed alarm = %v, want ErrAlarmNotArmed", err)
	}
	alarm.Arm()
	if err := alarm.Trigger(); err != nil {
		t.Fatalf("Trigger() on armed alarm = %v", err)
	}
	if !alarm.IsTriggered {
		t.Error("armed alarm not triggered after Trigger()")
	}
}

func TestAlarmSetThreshold(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	if err := alarm.SetThreshold(0); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("SetThreshold(0) = %v, want ErrInvalidValue", err)
	}
	if err := alarm.SetThreshold(5); err != nil {
		t.Fatalf("SetThreshold(5) = %v", err)
	}
	if alarm.Threshold != 5 {
		t.Errorf("Threshold = %d, want 5", alarm.Threshold)
	}
}

func TestAlarmCloneIsDeep(t *testing.T) {
	alarm := NewAlarm(1, 4321)
	alarm.Arm()
	alarm.NoteFailedUnlock(1, 1)

	snapshot := alarm.Clone()
	alarm.NoteFailedUnlock(1, 1)

	if got := snapshot.TotalFailedAttempts(); got != 1 {
		t.Errorf("snapshot counters followed the original: %d, want 1", got)
	}
}
