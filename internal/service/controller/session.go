package controller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/agrosmart/internal/api/web"
	"github.com/oshokin/agrosmart/internal/logger"
	"github.com/oshokin/agrosmart/internal/sensor"
)

const (
	// MaxRequestSize caps how much of a request is accumulated.
	MaxRequestSize = 2048
	// readChunk is the size of a single receive.
	readChunk = 512
	// lingerTimeout bounds draining the peer after the response was sent.
	lingerTimeout = 500 * time.Millisecond
)

// phase is where a session is in its lifecycle.
type phase uint8

const (
	phaseAccepted phase = iota
	phaseReceiving
	phaseReceived
	phaseResponded
	phaseClosed
)

// String returns the phase name for logs.
func (p phase) String() string {
	switch p {
	case phaseAccepted:
		return "accepted"
	case phaseReceiving:
		return "receiving"
	case phaseReceived:
		return "received"
	case phaseResponded:
		return "responded"
	case phaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session is one accepted connection.
type session struct {
	id    string
	conn  net.Conn
	phase phase
}

// serveSession handles one connection from accept to close.
func (l *Loop) serveSession(ctx context.Context, conn net.Conn) {
	s := &session{
		id:    uuid.NewString(),
		conn:  conn,
		phase: phaseAccepted,
	}

	ctx = logger.WithKV(ctx, "session_id", s.id, "remote", conn.RemoteAddr().String())

	outcome := s.run(ctx, l.controller, time.Now().Add(l.timeout))

	s.close(ctx)
	l.recorder.SessionFinished(outcome)

	logger.DebugKV(ctx, "Session finished", "outcome", outcome, "phase", s.phase)
}

// run receives the request, applies it and sends the page.
// It returns the outcome reported to the Recorder.
func (s *session) run(ctx context.Context, c *Controller, deadline time.Time) string {
	if err := s.conn.SetDeadline(deadline); err != nil {
		logger.ErrorKV(ctx, "Set session deadline failed", "error", err)

		return OutcomeSendError
	}

	s.phase = phaseReceiving

	payload, err := receive(s.conn)
	if len(payload) == 0 {
		// Peer closed or stalled before sending anything.
		logger.DebugKV(ctx, "No request received", "error", err)

		return OutcomePeerClosed
	}

	if err != nil && !errors.Is(err, io.EOF) {
		logger.WarnKV(ctx, "Incomplete request, answering what arrived", "bytes", len(payload), "error", err)
	}

	s.phase = phaseReceived

	if time.Now().After(deadline) {
		// The request was cut off by the deadline; allow the page to go out.
		if err = s.conn.SetWriteDeadline(time.Now().Add(lingerTimeout)); err != nil {
			logger.ErrorKV(ctx, "Extend send deadline failed", "error", err)

			return OutcomeSendError
		}
	}

	command := web.ParseCommand(payload)
	logger.InfoKV(ctx, "Request received", "request_line", web.RequestLine(payload), "command", command)

	snapshot, err := c.Exchange(ctx, command)
	if err != nil {
		if errors.Is(err, sensor.ErrUnavailable) {
			logger.ErrorKV(ctx, "No moisture reading, dropping request", "error", err)

			return OutcomeSensorError
		}

		logger.ErrorKV(ctx, "Alert state update failed, dropping request", "error", err)

		return OutcomeStateError
	}

	response, err := web.Render(snapshot.Moisture, snapshot.State)
	if err != nil {
		logger.ErrorKV(ctx, "Render status page failed", "error", err)

		return OutcomeRenderError
	}

	if _, err = s.conn.Write(response); err != nil {
		logger.ErrorKV(ctx, "Send status page failed", "error", err)

		return OutcomeSendError
	}

	s.phase = phaseResponded

	logger.DebugKV(ctx, "Status page sent", "moisture", snapshot.Moisture, "state", snapshot.State)

	return OutcomeResponded
}

// close ends the connection. After a response the write side is shut and
// unread request bytes are drained off the loop goroutine, so the peer gets
// the whole page instead of a reset.
func (s *session) close(ctx context.Context) {
	defer func() { s.phase = phaseClosed }()

	if s.phase == phaseResponded {
		if cw, ok := s.conn.(interface{ CloseWrite() error }); ok && cw.CloseWrite() == nil {
			go linger(ctx, s.conn)

			return
		}
	}

	closeConn(ctx, s.conn)
}

// linger drains what the peer still sends for up to lingerTimeout, then closes.
func linger(ctx context.Context, conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, MaxRequestSize))

	closeConn(ctx, conn)
}

func closeConn(ctx context.Context, conn net.Conn) {
	if err := conn.Close(); err != nil {
		logger.DebugKV(ctx, "Close connection failed", "error", err)
	}
}

// receive accumulates reads until the request line is complete, the peer
// closes, the buffer is full or the deadline expires. Whatever arrived is
// returned together with the error that ended the read, if any.
func receive(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, MaxRequestSize)

	for len(buf) < MaxRequestSize {
		end := min(len(buf)+readChunk, MaxRequestSize)

		n, err := conn.Read(buf[len(buf):end])
		buf = buf[:len(buf)+n]

		if complete(buf) {
			return buf, nil
		}

		if err != nil {
			return buf, err
		}
	}

	return buf, nil
}

// complete reports whether buf holds a whole request line. Only the request
// line decides the command, headers are drained on close.
func complete(buf []byte) bool {
	return bytes.IndexByte(buf, '\n') >= 0
}
