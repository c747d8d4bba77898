package alert

// Command is what a single request asks the controller to do.
type Command uint8

const (
	// CommandNone only reports the status.
	CommandNone Command = iota
	// CommandReset clears the latch before reporting the status.
	CommandReset
)

// String returns the command name for logs.
func (c Command) String() string {
	if c == CommandReset {
		return "reset"
	}

	return "none"
}

// Indicator identifies one of the two actuators bound to the alert state.
type Indicator uint8

const (
	// Visual is the red alert LED.
	Visual Indicator = iota
	// Audible is the buzzer.
	Audible
)

// Indicators lists the actuator pair in the order it is driven.
//
//nolint:gochecknoglobals // Fixed pair, read-only.
var Indicators = [...]Indicator{Visual, Audible}

// String returns the indicator name for logs and errors.
func (i Indicator) String() string {
	switch i {
	case Visual:
		return "visual"
	case Audible:
		return "audible"
	default:
		return "unknown"
	}
}
