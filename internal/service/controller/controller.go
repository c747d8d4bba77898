package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/agrosmart/internal/domain/alert"
	machine "github.com/oshokin/agrosmart/internal/service/alert"
)

// MoistureReader samples the probe.
type MoistureReader interface {
	ReadMoisture(ctx context.Context) (alert.Moisture, error)
}

// Recorder receives per-exchange measurements. Metrics implement it.
type Recorder interface {
	MoistureRead(moisture alert.Moisture)
	SessionFinished(outcome string)
}

// Session outcomes reported to the Recorder.
const (
	OutcomeResponded   = "responded"
	OutcomePeerClosed  = "peer_closed"
	OutcomeSensorError = "sensor_error"
	OutcomeStateError  = "state_error"
	OutcomeRenderError = "render_error"
	OutcomeSendError   = "send_error"
)

// nopRecorder is used when no Recorder is configured.
type nopRecorder struct{}

func (nopRecorder) MoistureRead(alert.Moisture) {}
func (nopRecorder) SessionFinished(string)      {}

// Controller applies one command and one fresh reading to the alert machine.
type Controller struct {
	// machine is the latched alert state.
	machine *machine.Machine
	// reader samples the probe.
	reader MoistureReader
	// recorder receives readings.
	recorder Recorder
}

// NewController creates a Controller. A nil recorder disables measurements.
func NewController(m *machine.Machine, reader MoistureReader, recorder Recorder) *Controller {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Controller{
		machine:  m,
		reader:   reader,
		recorder: recorder,
	}
}

// Exchange runs one request against the machine: reset first when asked,
// then read fresh moisture and evaluate it unless already latched. A reset
// followed by a still-low reading latches again in the same exchange.
func (c *Controller) Exchange(ctx context.Context, command alert.Command) (*alert.Snapshot, error) {
	if command == alert.CommandReset {
		if err := c.machine.Reset(ctx); err != nil {
			return nil, err
		}
	}

	moisture, err := c.reader.ReadMoisture(ctx)
	if err != nil {
		return nil, fmt.Errorf("read moisture: %w", err)
	}

	readAt := time.Now()

	c.recorder.MoistureRead(moisture)

	if !c.machine.Latched() {
		if err = c.machine.Evaluate(ctx, moisture); err != nil {
			return nil, err
		}
	}

	return &alert.Snapshot{
		State:     c.machine.State(),
		Moisture:  moisture,
		ReadAt:    readAt,
		ChangedAt: c.machine.ChangedAt(),
	}, nil
}
