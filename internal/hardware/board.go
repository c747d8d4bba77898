package hardware

import (
	"context"
	"fmt"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// Board is a probe input plus the two alert indicators.
type Board interface {
	ReadRawSample(ctx context.Context) (uint16, error)
	SetActuator(ctx context.Context, indicator alert.Indicator, active bool) error
	Close() error
}

// Open returns the board selected by the hardware settings.
//
//nolint:ireturn // Callers only need the Board contract.
func Open(settings config.Hardware) (Board, error) {
	switch settings.Driver {
	case config.DriverSimulated:
		return NewSimulated(settings.SimulatedRaw), nil
	case config.DriverGPIO, "":
		board, err := OpenRaspberryPi(settings)
		if err != nil {
			return nil, err
		}

		return board, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, settings.Driver)
	}
}
