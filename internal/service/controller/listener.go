package controller

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/oshokin/agrosmart/internal/logger"
)

// acceptRetryDelay pauses accepting after a transient accept error.
const acceptRetryDelay = 50 * time.Millisecond

// Serve accepts connections on lis and queues them to the loop until ctx is
// canceled. Accept errors are logged and accepting continues.
func (l *Loop) Serve(ctx context.Context, lis net.Listener) error {
	ctx = logger.WithName(ctx, "http")

	stop := context.AfterFunc(ctx, func() {
		_ = lis.Close()
	})
	defer stop()

	logger.InfoKV(ctx, "Status page listening", "listen_address", lis.Addr().String())

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info(ctx, "Status page listener stopped")

				return nil
			}

			logger.ErrorKV(ctx, "Accept connection failed", "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptRetryDelay):
			}

			continue
		}

		l.Enqueue(ctx, conn)
	}
}
