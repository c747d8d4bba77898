package controller

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrosmart/internal/api/web"
	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/hardware"
)

const (
	testSessionTimeout = 300 * time.Millisecond
	testClientTimeout  = 5 * time.Second
)

// testLoop is a running loop bound to a loopback listener.
type testLoop struct {
	loop     *Loop
	board    *hardware.Simulated
	recorder *recordingRecorder
	addr     string
}

// startLoop runs a loop and its listener until the test ends.
func startLoop(t *testing.T, raw uint16) *testLoop {
	t.Helper()

	c, board, recorder := newTestController(t, raw)
	loop := NewLoop(c, testSessionTimeout)

	lis, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	serveDone := make(chan error, 1)

	go func() { runDone <- loop.Run(ctx) }()
	go func() { serveDone <- loop.Serve(ctx, lis) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
		require.NoError(t, <-runDone)
	})

	return &testLoop{
		loop:     loop,
		board:    board,
		recorder: recorder,
		addr:     lis.Addr().String(),
	}
}

// roundTrip sends request and returns everything the controller answered.
func roundTrip(t *testing.T, addr, request string) string {
	t.Helper()

	conn, err := (&net.Dialer{Timeout: testClientTimeout}).Dial("tcp", addr)
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetDeadline(time.Now().Add(testClientTimeout)))

	if request != "" {
		_, err = io.WriteString(conn, request)
		require.NoError(t, err)
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		// A dropped session may surface as a reset instead of EOF.
		require.NotErrorIs(t, err, os.ErrDeadlineExceeded)
	}

	return string(response)
}

// waitOutcome waits until the n-th session outcome is recorded and returns it.
func waitOutcome(t *testing.T, recorder *recordingRecorder, n int) string {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(recorder.Outcomes()) >= n
	}, testClientTimeout, 10*time.Millisecond)

	return recorder.Outcomes()[n-1]
}

// TestLoop_StatusPageWet checks a plain GET at 80% shows the normal page.
func TestLoop_StatusPageWet(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawWet)

	response := roundTrip(t, tl.addr, "GET / HTTP/1.1\r\nHost: agrosmart\r\n\r\n")
	require.True(t, strings.HasPrefix(response, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, response, "Umidade atual: 80.00%")
	require.Contains(t, response, "Nível dentro do ideal")
	require.NotContains(t, response, web.AlertMessage)
	require.Zero(t, tl.board.Toggles(alert.Visual))
	require.Zero(t, tl.board.Toggles(alert.Audible))
	require.Equal(t, OutcomeResponded, waitOutcome(t, tl.recorder, 1))
}

// TestLoop_StatusPageDry checks a low reading latches and shows the alert.
func TestLoop_StatusPageDry(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawDry)

	response := roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")
	require.Contains(t, response, web.AlertMessage)
	require.Contains(t, response, "Umidade atual: 9.99%")
	require.True(t, tl.board.Active(alert.Visual))
	require.True(t, tl.board.Active(alert.Audible))
}

// TestLoop_ResetRelatches checks /resetar with still-low moisture shows the alert again.
func TestLoop_ResetRelatches(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawDry)

	roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")

	response := roundTrip(t, tl.addr, "GET /resetar HTTP/1.1\r\n\r\n")
	require.Contains(t, response, web.AlertMessage)
	require.Equal(t, 3, tl.board.Toggles(alert.Visual))
}

// TestLoop_ResetAfterRecovery checks /resetar clears the alert once moisture is back.
func TestLoop_ResetAfterRecovery(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawDry)

	roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")
	tl.board.SetRaw(rawWet)

	response := roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")
	require.Contains(t, response, web.AlertMessage)

	response = roundTrip(t, tl.addr, "GET /resetar?x=1 HTTP/1.1\r\n\r\n")
	require.Contains(t, response, web.NormalMessage)
	require.False(t, tl.board.Active(alert.Audible))
}

// TestLoop_PeerClosedWithoutRequest checks nothing is sent and the loop keeps serving.
func TestLoop_PeerClosedWithoutRequest(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawWet)

	conn, err := (&net.Dialer{Timeout: testClientTimeout}).Dial("tcp", tl.addr)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Equal(t, OutcomePeerClosed, waitOutcome(t, tl.recorder, 1))
	require.Zero(t, tl.recorder.Readings())

	response := roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")
	require.Contains(t, response, web.NormalMessage)
}

// TestLoop_SilentPeerTimesOut checks a connection that never sends is closed at the deadline.
func TestLoop_SilentPeerTimesOut(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawWet)

	started := time.Now()
	response := roundTrip(t, tl.addr, "")

	require.Empty(t, response)
	require.GreaterOrEqual(t, time.Since(started), testSessionTimeout)
	require.Equal(t, OutcomePeerClosed, waitOutcome(t, tl.recorder, 1))
}

// TestLoop_RequestLineOnly checks a bare request line is answered without waiting for headers.
func TestLoop_RequestLineOnly(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawDry)

	roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")
	tl.board.SetRaw(rawWet)

	conn, err := (&net.Dialer{Timeout: testClientTimeout}).Dial("tcp", tl.addr)
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetDeadline(time.Now().Add(testClientTimeout)))

	started := time.Now()

	_, err = io.WriteString(conn, "GET /resetar HTTP/1.1\r\n")
	require.NoError(t, err)

	// Read the page while the connection is still open on our side.
	page := make([]byte, web.MaxResponseSize)
	n, err := io.ReadAtLeast(conn, page, len("HTTP/1.1 200 OK"))
	require.NoError(t, err)
	require.Less(t, time.Since(started), testSessionTimeout)

	rest, err := io.ReadAll(conn)
	require.NoError(t, err)

	response := string(page[:n]) + string(rest)
	require.Contains(t, response, web.NormalMessage)
}

// TestLoop_PartialRequestAnsweredAtDeadline checks a request cut off before its line ends still gets a page.
func TestLoop_PartialRequestAnsweredAtDeadline(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawWet)

	started := time.Now()
	response := roundTrip(t, tl.addr, "GET /resetar")

	require.Contains(t, response, web.NormalMessage)
	require.GreaterOrEqual(t, time.Since(started), testSessionTimeout)
}

// TestLoop_IdlePeerDoesNotHoldLoop checks a client keeping its socket open
// after the page does not delay the next control call.
func TestLoop_IdlePeerDoesNotHoldLoop(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawWet)

	conn, err := (&net.Dialer{Timeout: testClientTimeout}).Dial("tcp", tl.addr)
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetDeadline(time.Now().Add(testClientTimeout)))

	_, err = io.WriteString(conn, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	response, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Contains(t, string(response), web.NormalMessage)

	started := time.Now()

	_, err = tl.loop.Exchange(context.Background(), alert.CommandNone)
	require.NoError(t, err)
	require.Less(t, time.Since(started), lingerTimeout/2)
}

// TestLoop_SensorFailureDropsSession checks no response is sent when the probe fails.
func TestLoop_SensorFailureDropsSession(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawWet)
	tl.board.FailSamples(errTestProbe)

	response := roundTrip(t, tl.addr, "GET / HTTP/1.1\r\n\r\n")
	require.Empty(t, response)
	require.Equal(t, OutcomeSensorError, waitOutcome(t, tl.recorder, 1))
}

// TestLoop_Exchange runs control calls through the loop.
func TestLoop_Exchange(t *testing.T) {
	t.Parallel()

	tl := startLoop(t, rawDry)

	snapshot, err := tl.loop.Exchange(context.Background(), alert.CommandNone)
	require.NoError(t, err)
	require.Equal(t, alert.Latched, snapshot.State)

	tl.board.SetRaw(rawWet)

	snapshot, err = tl.loop.Exchange(context.Background(), alert.CommandReset)
	require.NoError(t, err)
	require.Equal(t, alert.Normal, snapshot.State)
}

// TestLoop_ExchangeAfterStop checks calls fail once the loop is gone.
func TestLoop_ExchangeAfterStop(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestController(t, rawWet)
	loop := NewLoop(c, testSessionTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, loop.Run(ctx))

	_, err := loop.Exchange(context.Background(), alert.CommandNone)
	require.ErrorIs(t, err, ErrLoopStopped)
}

// TestReceive_StopsAtRequestLine checks accumulation across chunks up to the first line end.
func TestReceive_StopsAtRequestLine(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()

	defer func() { _ = server.Close() }()

	go func() {
		_, _ = io.WriteString(client, "GET /res")
		_, _ = io.WriteString(client, "etar HTTP/1.1\r\n")
	}()

	payload, err := receive(server)
	require.NoError(t, err)
	require.Equal(t, "GET /resetar HTTP/1.1\r\n", string(payload))
	require.Equal(t, alert.CommandReset, web.ParseCommand(payload))

	_ = client.Close()
}
