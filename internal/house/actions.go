package house

import "fmt"

// Action is a device action verb as it appears on the wire.
type Action string

// Action verbs. Each device kind accepts a subset; anything else is
// ErrUnsupportedAction.
const (
	ActionToggle  Action = "toggle"
	ActionOn      Action = "on"
	ActionOff     Action = "off"
	ActionDim     Action = "dim"
	ActionColor   Action = "color"
	ActionLock    Action = "lock"
	ActionUnlock  Action = "unlock"
	ActionUp      Action = "up"
	ActionDown    Action = "down"
	ActionOpen    Action = "open"
	ActionClose   Action = "close"
	ActionShutter Action = "shutter"
	ActionArm     Action = "arm"
	ActionDisarm  Action = "disarm"
	ActionTrigger Action = "trigger"
	ActionStop    Action = "stop"
)

// alarmActions are the verbs handled by the house alarm rather than a
// room device.
var alarmActions = map[Action]bool{
	ActionArm:     true,
	ActionDisarm:  true,
	ActionTrigger: true,
	ActionStop:    true,
}

// IsAlarmAction reports whether the verb targets the house alarm.
func IsAlarmAction(a Action) bool {
	return alarmActions[a]
}

// ActionParams carries the optional parameters an action may need. Level
// is a pointer so that an absent dim level is distinguishable from 0.
type ActionParams struct {
	Level *int
	Color Color
	Code  string
}

// ActionOutcome reports side information about an applied action that the
// caller must react to.
type ActionOutcome struct {
	// FailedUnlock is set when an unlock action ran with a wrong code.
	// The command itself still succeeded; the caller reports the failure
	// to the house alarm.
	FailedUnlock bool
}

// ApplyDeviceAction mutates a room device according to the action verb.
// The device is modified in place; on error it is left untouched. Callers
// snapshot the device beforehand if they need rollback after a failed
// persist.
func ApplyDeviceAction(d Device, action Action, params ActionParams) (ActionOutcome, error) {
	switch dev := d.(type) {
	case *Lamp:
		return ActionOutcome{}, applyLightAction(&dev.lightCore, action, params)
	case *CeilingLight:
		return ActionOutcome{}, applyLightAction(&dev.lightCore, action, params)
	case *Lock:
		return applyLockAction(dev, action, params)
	case *Blinds:
		return ActionOutcome{}, applyBlindsAction(dev, action)
	default:
		return ActionOutcome{}, fmt.Errorf("%w: %T", ErrInvalidDeviceKind, d)
	}
}

func applyLightAction(l *lightCore, action Action, params ActionParams) error {
	switch action {
	case ActionToggle:
		l.flipSwitch()
	case ActionOn:
		l.setOn(true)
	case ActionOff:
		l.setOn(false)
	case ActionDim:
		if params.Level == nil {
			return fmt.Errorf("%w: dim requires a level", ErrMissingParameter)
		}
		l.setShade(*params.Level)
	case ActionColor:
		if params.Color == "" {
			return fmt.Errorf("%w: color requires a color", ErrMissingParameter)
		}
		return l.setColor(params.Color)
	default:
		return fmt.Errorf("%w: %q on a light", ErrUnsupportedAction, action)
	}
	return nil
}

func applyLockAction(l *Lock, action Action, params ActionParams) (ActionOutcome, error) {
	switch action {
	case ActionLock:
		l.Engage()
		return ActionOutcome{}, nil
	case ActionUnlock:
		if params.Code == "" {
			return ActionOutcome{}, fmt.Errorf("%w: unlock requires a code", ErrMissingParameter)
		}
		ok := l.TryUnlock(params.Code)
		return ActionOutcome{FailedUnlock: !ok}, nil
	default:
		return ActionOutcome{}, fmt.Errorf("%w: %q on a lock", ErrUnsupportedAction, action)
	}
}

func applyBlindsAction(b *Blinds, action Action) error {
	switch action {
	case ActionToggle:
		b.IsUp = !b.IsUp
	case ActionUp:
		b.IsUp = true
	case ActionDown:
		b.IsUp = false
	case ActionShutter:
		b.IsOpen = !b.IsOpen
	case ActionOpen:
		b.IsOpen = true
	case ActionClose:
		b.IsOpen = false
	default:
		return fmt.Errorf("%w: %q on blinds", ErrUnsupportedAction, action)
	}
	return nil
}

// ApplyAlarmAction mutates the house alarm according to the action verb.
func ApplyAlarmAction(a *Alarm, action Action) error {
	switch action {
	case ActionArm:
		a.Arm()
	case ActionDisarm:
		a.Disarm()
	case ActionTrigger:
		return a.Trigger()
	case ActionStop:
		a.Stop()
	default:
		return fmt.Errorf("%w: %q on the alarm", ErrUnsupportedAction, action)
	}
	return nil
}
