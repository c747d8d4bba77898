package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// MaxRaw is the full-scale value of the 12-bit converter.
const MaxRaw uint16 = 4095

// ErrUnavailable is returned when no sample can be taken.
var ErrUnavailable = errors.New("sensor unavailable")

// Source delivers raw samples in [0, MaxRaw].
type Source interface {
	ReadRawSample(ctx context.Context) (uint16, error)
}

// Reader turns raw samples from a Source into moisture readings.
type Reader struct {
	// source is the analog input the probe is wired to.
	source Source
}

// NewReader creates a Reader over the provided source.
func NewReader(source Source) *Reader {
	return &Reader{
		source: source,
	}
}

// ReadMoisture samples the source once and returns the calibrated reading.
// Source failures are wrapped with ErrUnavailable and never substituted.
func (r *Reader) ReadMoisture(ctx context.Context) (alert.Moisture, error) {
	if r == nil || r.source == nil {
		return 0, ErrUnavailable
	}

	raw, err := r.source.ReadRawSample(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return 0, err
		}

		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return Percent(raw), nil
}

// Percent maps a raw sample to a moisture percentage.
// Samples above MaxRaw are treated as MaxRaw.
func Percent(raw uint16) alert.Moisture {
	if raw > MaxRaw {
		raw = MaxRaw
	}

	percent := 100.0 * float64(MaxRaw-raw) / float64(MaxRaw)

	return alert.Moisture(percent).Clamp()
}
