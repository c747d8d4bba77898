package hardware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
)

const (
	// spiSpeed is the MCP3208 clock, well under its 2 MHz limit at 5V.
	spiSpeed = 1_000_000
	// spiChip is the chip-select line the converter is wired to.
	spiChip = 0
	// mcp3208StartSingle is the start bit plus single-ended mode.
	mcp3208StartSingle = 0x06
	// mcp3208Mask keeps the 4 data bits of the second reply byte.
	mcp3208Mask = 0x0F
)

// ErrClosed is returned by a board after Close.
var ErrClosed = errors.New("board closed")

// RaspberryPi drives the indicators over GPIO and samples the probe through
// an MCP3208 12-bit converter on SPI0.
type RaspberryPi struct {
	// pins maps each indicator to its output pin.
	pins map[alert.Indicator]rpio.Pin
	// channel is the converter input the probe is wired to.
	channel uint8
	// mu guards closed and the shared SPI buffer.
	mu     sync.Mutex
	closed bool
}

// OpenRaspberryPi maps the GPIO registers, claims SPI0 and drives both
// indicators low.
func OpenRaspberryPi(settings config.Hardware) (*RaspberryPi, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}

	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		_ = rpio.Close()

		return nil, fmt.Errorf("begin spi: %w", err)
	}

	rpio.SpiSpeed(spiSpeed)
	rpio.SpiChipSelect(spiChip)

	board := &RaspberryPi{
		pins: map[alert.Indicator]rpio.Pin{
			alert.Visual:  rpio.Pin(settings.VisualPin),
			alert.Audible: rpio.Pin(settings.AudiblePin),
		},
		channel: settings.ADCChannel,
	}

	for _, pin := range board.pins {
		pin.Output()
		pin.Low()
	}

	return board, nil
}

// ReadRawSample performs one single-ended conversion.
func (p *RaspberryPi) ReadRawSample(_ context.Context) (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	frame := []byte{
		mcp3208StartSingle | (p.channel >> 2),
		(p.channel & 0x03) << 6,
		0,
	}

	rpio.SpiExchange(frame)

	return uint16(frame[1]&mcp3208Mask)<<8 | uint16(frame[2]), nil
}

// SetActuator drives the indicator pin high when active.
func (p *RaspberryPi) SetActuator(_ context.Context, indicator alert.Indicator, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	pin, ok := p.pins[indicator]
	if !ok {
		return fmt.Errorf("no pin for %s indicator", indicator)
	}

	if active {
		pin.High()
	} else {
		pin.Low()
	}

	return nil
}

// Close drives the indicators low and releases SPI and the GPIO mapping.
func (p *RaspberryPi) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	for _, pin := range p.pins {
		pin.Low()
	}

	rpio.SpiEnd(rpio.Spi0)

	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio memory: %w", err)
	}

	return nil
}
