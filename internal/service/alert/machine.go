package alert

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/logger"
)

// Actuators drives the indicator pair bound to the alert state.
type Actuators interface {
	SetActuator(ctx context.Context, indicator domain.Indicator, active bool) error
}

// Observer is told about every state change after hardware and state agree.
type Observer interface {
	AlertChanged(ctx context.Context, transition domain.Transition)
}

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers an observer of state transitions.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithClock overrides the time source used for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine holds the latched alert state and keeps the actuators in step with it.
type Machine struct {
	// actuators is the indicator pair.
	actuators Actuators
	// observers receive transitions in registration order.
	observers []Observer
	// state is the current latch position.
	state domain.State
	// changedAt is when state last changed.
	changedAt time.Time
	// now is the clock.
	now func() time.Time
}

// NewMachine creates a Normal machine and drives both actuators inactive so
// the hardware starts out consistent with the state.
func NewMachine(ctx context.Context, actuators Actuators, opts ...Option) (*Machine, error) {
	m := &Machine{
		actuators: actuators,
		state:     domain.Normal,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.drive(ctx, false); err != nil {
		return nil, fmt.Errorf("initialise actuators: %w", err)
	}

	return m, nil
}

// State returns the current latch position.
func (m *Machine) State() domain.State {
	return m.state
}

// Latched reports whether the alert is latched.
func (m *Machine) Latched() bool {
	return m.state == domain.Latched
}

// ChangedAt returns when the state last changed, zero if it never did.
func (m *Machine) ChangedAt() time.Time {
	return m.changedAt
}

// Evaluate latches the alert when the machine is Normal and moisture is
// below the threshold. While latched it does nothing, not even touch the
// actuators.
func (m *Machine) Evaluate(ctx context.Context, moisture domain.Moisture) error {
	if m.state == domain.Latched || !moisture.BelowThreshold() {
		return nil
	}

	if err := m.drive(ctx, true); err != nil {
		return fmt.Errorf("latch alert: %w", err)
	}

	m.transition(ctx, domain.Latched, moisture)

	return nil
}

// Reset returns the machine to Normal and drives both actuators inactive,
// whatever the previous state or the current moisture.
func (m *Machine) Reset(ctx context.Context) error {
	if err := m.drive(ctx, false); err != nil {
		return fmt.Errorf("reset alert: %w", err)
	}

	if m.state == domain.Normal {
		return nil
	}

	m.transition(ctx, domain.Normal, 0)

	return nil
}

// drive sets every indicator to active. If one write fails the indicators
// already written are put back, so the pair never disagrees with state.
func (m *Machine) drive(ctx context.Context, active bool) error {
	previous := m.state == domain.Latched

	for i, indicator := range domain.Indicators {
		err := m.actuators.SetActuator(ctx, indicator, active)
		if err == nil {
			continue
		}

		for _, written := range domain.Indicators[:i] {
			if rollbackErr := m.actuators.SetActuator(ctx, written, previous); rollbackErr != nil {
				logger.ErrorKV(ctx, "Actuator rollback failed", "indicator", written, "error", rollbackErr)
			}
		}

		return fmt.Errorf("drive %s indicator: %w", indicator, err)
	}

	return nil
}

// transition records the new state and notifies observers.
func (m *Machine) transition(ctx context.Context, to domain.State, moisture domain.Moisture) {
	t := domain.Transition{
		From:     m.state,
		To:       to,
		Moisture: moisture,
		At:       m.now(),
	}

	m.state = to
	m.changedAt = t.At

	logger.InfoKV(ctx, "Alert state changed", "from", t.From, "to", t.To, "moisture", t.Moisture)

	for _, o := range m.observers {
		o.AlertChanged(ctx, t)
	}
}
