//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/agrosmart/internal/api/grpc/control"
	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// Client wraps a gRPC connection to the controller's control API.
type Client struct {
	// conn is the underlying gRPC connection to the controller.
	conn grpc.ClientConnInterface
	// closer releases conn.
	closer func() error
	// actor is sent with every call for the audit log.
	actor string

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the operator reported to the controller.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the controller at address.
// Note: this uses insecure transport credentials; the control API is meant
// for the local field network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}

	return newClient(conn, conn.Close, opts...), nil
}

// newClient builds a Client over an existing connection.
func newClient(conn grpc.ClientConnInterface, closer func() error, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		closer:      closer,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// GetStatus reads fresh moisture on the controller and returns its status.
func (c *Client) GetStatus(ctx context.Context) (*alert.Snapshot, error) {
	snapshot, err := c.invoke(ctx, control.GetStatusMethod)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return snapshot, nil
}

// ResetAlert clears the alert on the controller and returns its new status.
func (c *Client) ResetAlert(ctx context.Context) (*alert.Snapshot, error) {
	snapshot, err := c.invoke(ctx, control.ResetAlertMethod)
	if err != nil {
		return nil, fmt.Errorf("reset alert: %w", err)
	}

	return snapshot, nil
}

// invoke calls a control method and decodes the status struct.
func (c *Client) invoke(ctx context.Context, method string) (*alert.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if c.actor != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, control.ActorMetadataKey, c.actor)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, method, new(emptypb.Empty), out); err != nil {
		return nil, err
	}

	return control.Decode(out)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
