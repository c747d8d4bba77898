package control

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// Status struct field names.
const (
	FieldState     = "state"
	FieldMoisture  = "moisture_percent"
	FieldReadAt    = "read_at"
	FieldChangedAt = "changed_at"
)

var (
	// errMissingField is returned when a status struct lacks a field.
	errMissingField = errors.New("status field missing")
	// errBadState is returned for an unknown state name.
	errBadState = errors.New("unknown alert state")
)

// Encode converts a snapshot into the status struct sent over the wire.
// Timestamps are RFC 3339 in UTC; a zero ChangedAt is sent as an empty string.
func Encode(snapshot *alert.Snapshot) *structpb.Struct {
	if snapshot == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			FieldState:     structpb.NewStringValue(snapshot.State.String()),
			FieldMoisture:  structpb.NewNumberValue(float64(snapshot.Moisture)),
			FieldReadAt:    structpb.NewStringValue(formatTime(snapshot.ReadAt)),
			FieldChangedAt: structpb.NewStringValue(formatTime(snapshot.ChangedAt)),
		},
	}
}

// Decode converts a status struct back into a snapshot.
func Decode(status *structpb.Struct) (*alert.Snapshot, error) {
	fields := status.GetFields()

	stateValue, ok := fields[FieldState]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissingField, FieldState)
	}

	state, ok := alert.ParseState(stateValue.GetStringValue())
	if !ok {
		return nil, fmt.Errorf("%w: %q", errBadState, stateValue.GetStringValue())
	}

	moistureValue, ok := fields[FieldMoisture]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissingField, FieldMoisture)
	}

	readAt, err := parseTime(fields[FieldReadAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", FieldReadAt, err)
	}

	changedAt, err := parseTime(fields[FieldChangedAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", FieldChangedAt, err)
	}

	return &alert.Snapshot{
		State:     state,
		Moisture:  alert.Moisture(moistureValue.GetNumberValue()),
		ReadAt:    readAt,
		ChangedAt: changedAt,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
