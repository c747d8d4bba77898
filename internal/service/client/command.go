package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/logger"
	"github.com/oshokin/agrosmart/internal/service/common"
)

// Options configures the operator commands.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ControlAddress overrides the control address from config when specified.
	ControlAddress string
	// Output receives the human-readable status.
	Output io.Writer
	// PollInterval is the Watch interval.
	PollInterval time.Duration
}

// DefaultPollInterval is how often Watch asks for the status.
const DefaultPollInterval = 5 * time.Second

// Status prints the current controller status once.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "agrosmart-ctl")

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(opts.Output, FormatSnapshot(snapshot))

	return err
}

// Reset clears the alert and prints the resulting status. If moisture is
// still low the controller latches again and the printed status says so.
func Reset(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "agrosmart-ctl")

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.ResetAlert(ctx)
	if err != nil {
		return err
	}

	if snapshot.State == alert.Latched {
		logger.WarnKV(ctx, "Alert latched again, moisture is still below threshold", "moisture", snapshot.Moisture)
	}

	_, err = fmt.Fprintln(opts.Output, FormatSnapshot(snapshot))

	return err
}

// Watch polls the status until ctx is canceled, printing each poll and
// logging state changes. Failed polls are logged and polling continues.
func Watch(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "agrosmart-ctl")

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching controller", "interval", opts.PollInterval.String())

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var last *alert.Snapshot

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			snapshot, pollErr := client.GetStatus(ctx)
			if pollErr != nil {
				logger.ErrorKV(ctx, "Poll status failed", "error", pollErr)

				continue
			}

			if last != nil && last.State != snapshot.State {
				logger.InfoKV(ctx, "Alert state changed", "from", last.State, "to", snapshot.State)
			}

			last = snapshot

			if _, err = fmt.Fprintln(opts.Output, FormatSnapshot(snapshot)); err != nil {
				return err
			}
		}
	}
}

// FormatSnapshot renders a snapshot as one human-readable line.
func FormatSnapshot(snapshot *alert.Snapshot) string {
	if snapshot == nil {
		return "<nil status>"
	}

	readAt := "<unknown>"
	if !snapshot.ReadAt.IsZero() {
		readAt = snapshot.ReadAt.Format(time.RFC3339)
	}

	changedAt := "never"
	if !snapshot.ChangedAt.IsZero() {
		changedAt = snapshot.ChangedAt.Format(time.RFC3339)
	}

	return fmt.Sprintf("moisture %s%% at %s, alert %s (changed %s)", snapshot.Moisture, readAt, snapshot.State, changedAt)
}

// connect loads settings and dials the controller as the current operator.
func connect(ctx context.Context, opts *Options) (*common.Client, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	address := settings.ControlAddress
	if opts.ControlAddress != "" {
		address = opts.ControlAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect operator", "error", err)
	}

	return common.Dial(ctx, address, common.WithActor(actor))
}
