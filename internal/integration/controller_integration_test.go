package integration

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrosmart/internal/api/web"
	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/domain/alert"
	"github.com/oshokin/agrosmart/internal/hardware"
	"github.com/oshokin/agrosmart/internal/service/client"
	"github.com/oshokin/agrosmart/internal/service/common"
	"github.com/oshokin/agrosmart/internal/service/controller"
)

const (
	// rawWet reads as 80% moisture.
	rawWet uint16 = 819
	// rawDry reads as just under 10% moisture.
	rawDry uint16 = 3686

	testTimeout = 5 * time.Second
)

// testController is a running controller process.
type testController struct {
	board          *hardware.Simulated
	configPath     string
	listenAddress  string
	controlAddress string
	metricsAddress string
}

// reservePort allocates a free TCP port on localhost and returns it as host:port.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// startController runs the real controller against a simulated board until the test ends.
func startController(t *testing.T, raw uint16) *testController {
	t.Helper()

	tc := &testController{
		board:          hardware.NewSimulated(raw),
		listenAddress:  reservePort(t),
		controlAddress: reservePort(t),
		metricsAddress: reservePort(t),
	}

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	tc.configPath = cfgPath

	// Create temporary configuration file.
	require.NoError(
		t,
		config.Save(cfgPath, &config.Config{
			ListenAddress:  tc.listenAddress,
			ControlAddress: tc.controlAddress,
			MetricsAddress: tc.metricsAddress,
			SessionTimeout: time.Second,
			LogLevel:       "error",
			Hardware: config.Hardware{
				Driver:       config.DriverSimulated,
				SimulatedRaw: raw,
			},
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- controller.Run(ctx, &controller.Options{
			ConfigPath: cfgPath,
			Board:      tc.board,
		})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Wait until the status page accepts connections.
	require.Eventually(t, func() bool {
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", tc.listenAddress)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, testTimeout, 20*time.Millisecond)

	return tc
}

// get requests path from the status page over a raw connection.
func (tc *testController) get(t *testing.T, path string) string {
	t.Helper()

	conn, err := (&net.Dialer{Timeout: testTimeout}).Dial("tcp", tc.listenAddress)
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetDeadline(time.Now().Add(testTimeout)))

	_, err = io.WriteString(conn, "GET "+path+" HTTP/1.1\r\nHost: agrosmart\r\n\r\n")
	require.NoError(t, err)

	response, err := io.ReadAll(conn)
	require.NoError(t, err)

	return string(response)
}

// TestController_StatusPageAndControlAPI drives one controller over both surfaces.
func TestController_StatusPageAndControlAPI(t *testing.T) {
	t.Parallel()

	tc := startController(t, rawWet)

	page := tc.get(t, "/")
	require.Contains(t, page, "Umidade atual: 80.00%")
	require.Contains(t, page, web.NormalMessage)

	ctx := context.Background()

	c, err := common.Dial(ctx, tc.controlAddress, common.WithCallTimeout(3*time.Second), common.WithActor("tester@field"))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	// Drying out latches on the next reading, whichever surface takes it.
	tc.board.SetRaw(rawDry)

	snapshot, err := c.GetStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, alert.Latched, snapshot.State)
	require.True(t, tc.board.Active(alert.Visual))

	// Recovery alone keeps the alert.
	tc.board.SetRaw(rawWet)

	page = tc.get(t, "/")
	require.Contains(t, page, web.AlertMessage)

	snapshot, err = c.ResetAlert(ctx)
	require.NoError(t, err)
	require.Equal(t, alert.Normal, snapshot.State)
	require.False(t, tc.board.Active(alert.Audible))

	page = tc.get(t, "/")
	require.Contains(t, page, web.NormalMessage)
}

// TestController_ResetFromPageRelatches checks the page reset when the soil is still dry.
func TestController_ResetFromPageRelatches(t *testing.T) {
	t.Parallel()

	tc := startController(t, rawDry)

	require.Contains(t, tc.get(t, "/"), web.AlertMessage)
	require.Contains(t, tc.get(t, web.ResetPath), web.AlertMessage)
	require.Equal(t, 3, tc.board.Toggles(alert.Visual))
}

// TestController_OperatorCommands runs the agrosmart-ctl commands against the controller.
func TestController_OperatorCommands(t *testing.T) {
	t.Parallel()

	tc := startController(t, rawDry)

	var out bytes.Buffer

	opts := &client.Options{
		ConfigPath: tc.configPath,
		Output:     &out,
	}

	require.NoError(t, client.Status(context.Background(), opts))
	require.Contains(t, out.String(), "latched")

	tc.board.SetRaw(rawWet)
	out.Reset()

	require.NoError(t, client.Reset(context.Background(), opts))
	require.Contains(t, out.String(), "normal")
}

// TestController_Metrics checks the Prometheus endpoint reflects served sessions.
func TestController_Metrics(t *testing.T) {
	t.Parallel()

	tc := startController(t, rawDry)
	tc.get(t, "/")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+tc.metricsAddress+"/metrics", nil)
	require.NoError(t, err)

	var body []byte

	require.Eventually(t, func() bool {
		resp, doErr := http.DefaultClient.Do(req)
		if doErr != nil {
			return false
		}

		defer func() { _ = resp.Body.Close() }()

		body, doErr = io.ReadAll(resp.Body)

		return doErr == nil && bytes.Contains(body, []byte(`agrosmart_sessions_total{outcome="responded"}`))
	}, testTimeout, 20*time.Millisecond)

	require.Contains(t, string(body), "agrosmart_alert_latched 1")
	require.Contains(t, string(body), `agrosmart_alert_transitions_total{to="latched"} 1`)
}
