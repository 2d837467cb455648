package ipmi

import (
	"fmt"
	"strings"
)

// ActionKind selects which of the three actions a request carries.
type ActionKind int

const (
	ActionPower ActionKind = iota + 1
	ActionBootDevice
	ActionPassthru
)

func (k ActionKind) String() string {
	switch k {
	case ActionPower:
		return "power"
	case ActionBootDevice:
		return "bootdev"
	case ActionPassthru:
		return "passthru"
	default:
		return "unknown"
	}
}

// PowerCommands are the accepted values of the power action.
var PowerCommands = []string{"status", "on", "off", "cycle", "reset"}

// BootDevices are the accepted values of the bootdev action.
var BootDevices = []string{"pxe", "disk", "safe", "cdrom", "floppy", "bios", "diag"}

// Action is exactly one of Power, BootDevice or Passthru. Build it with
// SelectAction.
type Action struct {
	Kind ActionKind

	Power   string // ActionPower
	Device  string // ActionBootDevice
	Options string // ActionBootDevice, may be empty
	Raw     string // ActionPassthru
}

// SelectAction turns the three optional action parameters into one Action.
// Zero or several populated options, or a value outside the accepted set,
// is a UsageError.
func SelectAction(power, bootdev, options, passthru string) (Action, error) {
	var set []string
	if bootdev != "" {
		set = append(set, "bootdev")
	}
	if power != "" {
		set = append(set, "power")
	}
	if passthru != "" {
		set = append(set, "passthru")
	}
	switch len(set) {
	case 0:
		return Action{}, &UsageError{Msg: "one of power, bootdev or passthru is required"}
	case 1:
	default:
		return Action{}, &UsageError{Msg: fmt.Sprintf("power, bootdev and passthru are mutually exclusive, got %s", strings.Join(set, ", "))}
	}

	switch {
	case bootdev != "":
		if !oneOf(bootdev, BootDevices) {
			return Action{}, &UsageError{Msg: fmt.Sprintf("bootdev must be one of %s, got %q", strings.Join(BootDevices, "|"), bootdev)}
		}
		return Action{Kind: ActionBootDevice, Device: bootdev, Options: options}, nil
	case power != "":
		if !oneOf(power, PowerCommands) {
			return Action{}, &UsageError{Msg: fmt.Sprintf("power must be one of %s, got %q", strings.Join(PowerCommands, "|"), power)}
		}
		return Action{Kind: ActionPower, Power: power}, nil
	default:
		if len(strings.Fields(passthru)) == 0 {
			return Action{}, &UsageError{Msg: "passthru command is empty"}
		}
		return Action{Kind: ActionPassthru, Raw: passthru}, nil
	}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
