package hardware

import (
	"context"
	"sync"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// Simulated is an in-memory board. The probe returns whatever SetRaw stored
// and every actuator write is recorded.
type Simulated struct {
	mu sync.Mutex
	// raw is the sample returned by ReadRawSample.
	raw uint16
	// sampleErr, when set, makes ReadRawSample fail.
	sampleErr error
	// actuatorErr makes SetActuator fail for one indicator.
	actuatorErr map[alert.Indicator]error
	// active holds the current output level of each indicator.
	active map[alert.Indicator]bool
	// writes counts SetActuator calls per indicator.
	writes map[alert.Indicator]int
	// toggles counts level changes per indicator.
	toggles map[alert.Indicator]int
	closed  bool
}

// NewSimulated creates a board whose probe reads raw.
func NewSimulated(raw uint16) *Simulated {
	return &Simulated{
		raw:         raw,
		actuatorErr: make(map[alert.Indicator]error),
		active:      make(map[alert.Indicator]bool),
		writes:      make(map[alert.Indicator]int),
		toggles:     make(map[alert.Indicator]int),
	}
}

// SetRaw changes the sample returned by the probe.
func (s *Simulated) SetRaw(raw uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.raw = raw
}

// FailSamples makes every following ReadRawSample return err. Nil clears it.
func (s *Simulated) FailSamples(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sampleErr = err
}

// FailActuator makes SetActuator return err for indicator. Nil clears it.
func (s *Simulated) FailActuator(indicator alert.Indicator, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.actuatorErr, indicator)

		return
	}

	s.actuatorErr[indicator] = err
}

// ReadRawSample returns the stored sample.
func (s *Simulated) ReadRawSample(context.Context) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	if s.sampleErr != nil {
		return 0, s.sampleErr
	}

	return s.raw, nil
}

// SetActuator records the write and the new level.
func (s *Simulated) SetActuator(_ context.Context, indicator alert.Indicator, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.actuatorErr[indicator]; err != nil {
		return err
	}

	s.writes[indicator]++

	if s.active[indicator] != active {
		s.toggles[indicator]++
	}

	s.active[indicator] = active

	return nil
}

// Active reports the current level of indicator.
func (s *Simulated) Active(indicator alert.Indicator) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active[indicator]
}

// Writes returns how many times indicator was written.
func (s *Simulated) Writes(indicator alert.Indicator) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writes[indicator]
}

// Toggles returns how many times indicator changed level.
func (s *Simulated) Toggles(indicator alert.Indicator) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.toggles[indicator]
}

// Close marks the board closed and drops both indicators.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for _, indicator := range alert.Indicators {
		s.active[indicator] = false
	}

	return nil
}
