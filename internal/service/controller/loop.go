package controller

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/logger"
)

// sessionBacklog is how many accepted connections may wait for the loop.
const sessionBacklog = 16

// ErrLoopStopped is returned by calls made after the loop has exited.
var ErrLoopStopped = errors.New("controller loop stopped")

// exchangeResult is the reply to a control call.
type exchangeResult struct {
	snapshot *alert.Snapshot
	err      error
}

// exchangeRequest is a control call waiting for the loop.
type exchangeRequest struct {
	ctx     context.Context //nolint:containedctx // Carried to the loop goroutine with the call it belongs to.
	command alert.Command
	reply   chan exchangeResult
}

// Loop serializes sessions and control calls on one goroutine.
type Loop struct {
	// controller is only touched from Run.
	controller *Controller
	// recorder receives session outcomes.
	recorder Recorder
	// timeout bounds each session.
	timeout time.Duration
	// sessions queues accepted connections.
	sessions chan net.Conn
	// exchanges queues control calls.
	exchanges chan exchangeRequest
	// done is closed when Run returns.
	done chan struct{}
}

// NewLoop creates a loop around controller. Sessions are cut off after timeout.
func NewLoop(controller *Controller, timeout time.Duration) *Loop {
	return &Loop{
		controller: controller,
		recorder:   controller.recorder,
		timeout:    timeout,
		sessions:   make(chan net.Conn, sessionBacklog),
		exchanges:  make(chan exchangeRequest),
		done:       make(chan struct{}),
	}
}

// Run handles queued work until ctx is canceled. Connections still queued
// at that point are closed without a response.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ctx = logger.WithName(ctx, "loop")
	logger.Info(ctx, "Controller loop started")

	for {
		select {
		case <-ctx.Done():
			l.drain(ctx)
			logger.Info(ctx, "Controller loop stopped")

			return nil
		case conn := <-l.sessions:
			l.serveSession(ctx, conn)
		case req := <-l.exchanges:
			snapshot, err := l.controller.Exchange(req.ctx, req.command)
			req.reply <- exchangeResult{snapshot: snapshot, err: err}
		}
	}
}

// Enqueue hands an accepted connection to the loop. It blocks while the
// backlog is full and closes conn if ctx ends first.
func (l *Loop) Enqueue(ctx context.Context, conn net.Conn) {
	select {
	case l.sessions <- conn:
	case <-ctx.Done():
		_ = conn.Close()
	case <-l.done:
		_ = conn.Close()
	}
}

// Exchange runs command on the loop goroutine and waits for the snapshot.
func (l *Loop) Exchange(ctx context.Context, command alert.Command) (*alert.Snapshot, error) {
	req := exchangeRequest{
		ctx:     ctx,
		command: command,
		reply:   make(chan exchangeResult, 1),
	}

	select {
	case l.exchanges <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrLoopStopped
	}

	select {
	case result := <-req.reply:
		return result.snapshot, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain closes connections left in the backlog.
func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case conn := <-l.sessions:
			logger.DebugKV(ctx, "Dropping queued connection", "remote", conn.RemoteAddr().String())
			_ = conn.Close()
		default:
			return
		}
	}
}
