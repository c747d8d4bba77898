package alert

import "strconv"

const (
	// Threshold is the moisture percentage below which the alert latches.
	// The comparison is strict: exactly Threshold does not latch.
	Threshold Moisture = 30.0

	// MinMoisture and MaxMoisture bound every calibrated reading.
	MinMoisture Moisture = 0.0
	MaxMoisture Moisture = 100.0
)

// Moisture is a calibrated soil-moisture percentage in [0, 100].
type Moisture float64

// Clamp bounds m to [MinMoisture, MaxMoisture].
func (m Moisture) Clamp() Moisture {
	switch {
	case m < MinMoisture:
		return MinMoisture
	case m > MaxMoisture:
		return MaxMoisture
	default:
		return m
	}
}

// BelowThreshold reports whether m should latch the alert.
func (m Moisture) BelowThreshold() bool {
	return m < Threshold
}

// String formats the reading with exactly two decimals.
func (m Moisture) String() string {
	return strconv.FormatFloat(float64(m), 'f', 2, 64)
}
