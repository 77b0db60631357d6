package house

import (
	"errors"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestApplyLightActions(t *testing.T) {
	tests := []struct {
		name      string
		action    Action
		params    ActionParams
		wantOn    bool
		wantShade int
		wantColor Color
	}{
		{"toggle flips off to on", ActionToggle, ActionParams{}, true, 50, ColorWhite},
		{"on is idempotent-friendly", ActionOn, ActionParams{}, true, 50, ColorWhite},
		{"off forces off", ActionOff, ActionParams{}, false, 50, ColorWhite},
		{"dim sets level", ActionDim, ActionParams{Level: intPtr(75)}, false, 75, ColorWhite},
		{"dim clamps high", ActionDim, ActionParams{Level: intPtr(150)}, false, 100, ColorWhite},
		{"dim clamps low", ActionDim, ActionParams{Level: intPtr(-10)}, false, 0, ColorWhite},
		{"color changes", ActionColor, ActionParams{Color: ColorBlue}, false, 50, ColorBlue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lamp := NewLamp(1, false, 50, ColorWhite)
			if _, err := ApplyDeviceAction(lamp, tt.action, tt.params); err != nil {
				t.Fatalf("ApplyDeviceAction() error = %v", err)
			}
			if lamp.On != tt.wantOn || lamp.Shade != tt.wantShade || lamp.Color != tt.wantColor {
				t.Errorf("lamp = on:%v shade:%d color:%s, want on:%v shade:%d color:%s",
					lamp.On, lamp.Shade, lamp.Color, tt.wantOn, tt.wantShade, tt.wantColor)
			}
		})
	}
}

func TestApplyLightActionErrors(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		params  ActionParams
		wantErr error
	}{
		{"dim without level", ActionDim, ActionParams{}, ErrMissingParameter},
		{"color without color", ActionColor, ActionParams{}, ErrMissingParameter},
		{"unknown color", ActionColor, ActionParams{Color: "magenta"}, ErrInvalidValue},
		{"lock verb on a light", ActionLock, ActionParams{}, ErrUnsupportedAction},
		{"blinds verb on a light", ActionUp, ActionParams{}, ErrUnsupportedAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lamp := NewLamp(1, true, 50, ColorYellow)
			_, err := ApplyDeviceAction(lamp, tt.action, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyDeviceAction() error = %v, want %v", err, tt.wantErr)
			}
			// A rejected action must leave the device untouched.
			if !lamp.On || lamp.Shade != 50 || lamp.Color != ColorYellow {
				t.Errorf("lamp mutated by failed action: %+v", lamp)
			}
		})
	}
}

func TestCeilingLightSharesLightBehavior(t *testing.T) {
	light := NewCeilingLight(2, false, 100, ColorWhite)
	if _, err := ApplyDeviceAction(light, ActionToggle, ActionParams{}); err != nil {
		t.Fatalf("ApplyDeviceAction() error = %v", err)
	}
	if !light.On {
		t.Error("toggle did not switch ceiling light on")
	}
}

func TestLockUnlockCorrectCode(t *testing.T) {
	lock := NewLock(3, []string{"1234", "9999"})
	lock.FailedAttempts = 2

	out, err := ApplyDeviceAction(lock, ActionUnlock, ActionParams{Code: "9999"})
	if err != nil {
		t.Fatalf("ApplyDeviceAction() error = %v", err)
	}
	if out.FailedUnlock {
		t.Error("correct code reported as failed unlock")
	}
	if !lock.IsUnlocked {
		t.Error("lock still locked after correct code")
	}
	if lock.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0 after successful unlock", lock.FailedAttempts)
	}
}

func TestLockUnlockWrongCodeIsStillACommandSuccess(t *testing.T) {
	lock := NewLock(3, []string{"1234"})

	out, err := ApplyDeviceAction(lock, ActionUnlock, ActionParams{Code: "0000"})
	if err != nil {
		t.Fatalf("wrong code must not error, got %v", err)
	}
	if !out.FailedUnlock {
		t.Error("wrong code not reported as failed unlock")
	}
	if lock.IsUnlocked {
		t.Error("lock opened on wrong code")
	}
	if lock.FailedAttempts != 1 {
		t.Errorf("FailedAttempts = %d, want 1", lock.FailedAttempts)
	}
}

func TestLockUnlockRequiresCode(t *testing.T) {
	lock := NewLock(3, []string{"1234"})
	if _, err := ApplyDeviceAction(lock, ActionUnlock, ActionParams{}); !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("error = %v, want ErrMissingParameter", err)
	}
}

func TestApplyBlindsActions(t *testing.T) {
	tests := []struct {
		name     string
		action   Action
		startUp  bool
		wantUp   bool
		wantOpen bool
	}{
		{"toggle lowers raised blinds", ActionToggle, true, false, false},
		{"toggle raises lowered blinds", ActionToggle, false, true, false},
		{"up raises", ActionUp, false, true, false},
		{"down lowers", ActionDown, true, false, false},
		{"open opens shutter", ActionOpen, true, true, true},
		{"shutter toggles", ActionShutter, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blinds := NewBlinds(4, tt.startUp, false)
			if _, err := ApplyDeviceAction(blinds, tt.action, ActionParams{}); err != nil {
				t.Fatalf("ApplyDeviceAction() error = %v", err)
			}
			if blinds.IsUp != tt.wantUp || blinds.IsOpen != tt.wantOpen {
				t.Errorf("blinds = up:%v open:%v, want up:%v open:%v",
					blinds.IsUp, blinds.IsOpen, tt.wantUp, tt.wantOpen)
			}
		})
	}
}

func TestAlarmVerbRejectedOnRoomDevice(t *testing.T) {
	lamp := NewLamp(1, false, 100, ColorWhite)
	if _, err := ApplyDeviceAction(lamp, ActionArm, ActionParams{}); !errors.Is(err, ErrUnsupportedAction) {
		t.Fatalf("error = %v, want ErrUnsupportedAction", err)
	}
}
