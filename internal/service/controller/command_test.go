package controller

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/hardware"
	"github.com/oshokin/agrosmart/internal/notify"
)

// doneToken is an already completed mqtt.Token.
type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)

	return done
}

// countingClient counts publishes.
type countingClient struct {
	mu        sync.Mutex
	published int
}

func (c *countingClient) Publish(string, byte, bool, any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published++

	return doneToken{}
}

func (c *countingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.published
}

// TestRun_ListenFailureStartsNothing checks a busy port fails startup
// without leaving the notifier running.
func TestRun_ListenFailureStartsNothing(t *testing.T) {
	t.Parallel()

	busy, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = busy.Close() }()

	free, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	controlAddress := free.Addr().String()
	require.NoError(t, free.Close())

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		ListenAddress:  busy.Addr().String(),
		ControlAddress: controlAddress,
		LogLevel:       "error",
		Hardware:       config.Hardware{Driver: config.DriverSimulated},
	}))

	client := new(countingClient)
	publisher := notify.NewPublisher(client, "agrosmart/alert", nil)

	err = Run(context.Background(), &Options{
		ConfigPath: cfgPath,
		Board:      hardware.NewSimulated(rawWet),
		Publisher:  publisher,
	})
	require.Error(t, err)

	// Nothing drains the queue, so a transition stays unpublished.
	publisher.AlertChanged(context.Background(), alert.Transition{From: alert.Normal, To: alert.Latched})
	require.Never(t, func() bool { return client.count() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}
