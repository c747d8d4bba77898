package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// TestFormatSnapshot renders readings, states and missing timestamps.
func TestFormatSnapshot(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<nil status>", FormatSnapshot(nil))

	readAt := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	got := FormatSnapshot(&alert.Snapshot{State: alert.Normal, Moisture: 80, ReadAt: readAt})
	require.Equal(t, "moisture 80.00% at 2026-05-04T10:00:00Z, alert normal (changed never)", got)

	got = FormatSnapshot(&alert.Snapshot{State: alert.Latched, Moisture: 9.9878, ChangedAt: readAt})
	require.Equal(t, "moisture 9.99% at <unknown>, alert latched (changed 2026-05-04T10:00:00Z)", got)
}
