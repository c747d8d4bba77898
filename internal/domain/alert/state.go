package alert

import "time"

// State is the alert latch position.
type State uint8

const (
	// Normal means no alert is raised and both indicators are inactive.
	Normal State = iota
	// Latched means moisture dropped below Threshold and the indicators are
	// active until an explicit reset.
	Latched
)

// String returns the lowercase name used in logs, metrics and the control API.
func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Latched:
		return "latched"
	default:
		return "unknown"
	}
}

// ParseState converts the String form back into a State.
func ParseState(s string) (State, bool) {
	switch s {
	case "normal":
		return Normal, true
	case "latched":
		return Latched, true
	default:
		return Normal, false
	}
}

// Snapshot is the alert status at a specific point in time.
type Snapshot struct {
	// State is the latch position after the exchange completed.
	State State
	// Moisture is the reading taken during the exchange.
	Moisture Moisture
	// ReadAt is when Moisture was sampled.
	ReadAt time.Time
	// ChangedAt is when State last changed. Zero until the first transition.
	ChangedAt time.Time
}

// Clone returns a copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Transition describes one state change of the alert machine.
type Transition struct {
	From State
	To   State
	// Moisture is the reading that latched the alert, zero on reset.
	Moisture Moisture
	At       time.Time
}
