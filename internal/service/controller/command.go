package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/agrosmart/internal/api/grpc/control"
	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/hardware"
	"github.com/oshokin/agrosmart/internal/logger"
	"github.com/oshokin/agrosmart/internal/metrics"
	"github.com/oshokin/agrosmart/internal/notify"
	"github.com/oshokin/agrosmart/internal/sensor"
	machine "github.com/oshokin/agrosmart/internal/service/alert"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 2 * time.Second

// Options controls the controller process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the status page address from the settings.
	ListenAddress string
	// Board replaces the board selected by the settings when set.
	Board hardware.Board
	// Publisher replaces the MQTT publisher built from the settings when set.
	// The caller keeps ownership of it.
	Publisher *notify.Publisher
}

// Run starts the controller and blocks until ctx is canceled or a listener fails.
//
//nolint:funlen // Wiring of every component lives in one place on purpose.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "agrosmart-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.WarnKV(ctx, "Unknown log level, keeping current", "log_level", settings.LogLevel)
	}

	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	board := opts.Board
	if board == nil {
		if board, err = hardware.Open(settings.Hardware); err != nil {
			return fmt.Errorf("open board: %w", err)
		}

		defer func() {
			if closeErr := board.Close(); closeErr != nil {
				logger.ErrorKV(ctx, "Close board failed", "error", closeErr)
			}
		}()
	}

	collector := metrics.New()
	machineOptions := []machine.Option{machine.WithObserver(collector)}

	publisher := opts.Publisher

	if publisher == nil && settings.MQTT.Broker != "" {
		if publisher, err = notify.Connect(ctx, &settings.MQTT); err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}

		defer publisher.Close()
	}

	if publisher != nil {
		machineOptions = append(machineOptions, machine.WithObserver(publisher))
	}

	alertMachine, err := machine.NewMachine(ctx, board, machineOptions...)
	if err != nil {
		return fmt.Errorf("initialise alert: %w", err)
	}

	loop := NewLoop(NewController(alertMachine, sensor.NewReader(board), collector), settings.SessionTimeout)

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	controlListener, err := lc.Listen(ctx, "tcp", settings.ControlAddress)
	if err != nil {
		_ = httpListener.Close()

		return fmt.Errorf("listen on %s: %w", settings.ControlAddress, err)
	}

	grpcServer := grpc.NewServer()
	control.Register(grpcServer, control.NewServer(loop))

	group, groupCtx := errgroup.WithContext(ctx)

	if publisher != nil {
		group.Go(func() error {
			publisher.Run(groupCtx)

			return nil
		})
	}

	group.Go(func() error {
		return loop.Run(groupCtx)
	})

	group.Go(func() error {
		return loop.Serve(groupCtx, httpListener)
	})

	group.Go(func() error {
		return serveControl(groupCtx, grpcServer, controlListener)
	})

	if settings.MetricsAddress != "" {
		group.Go(func() error {
			return serveMetrics(groupCtx, settings.MetricsAddress, collector.Handler())
		})
	}

	logger.InfoKV(
		ctx,
		"Controller started",
		"listen_address", listenAddress,
		"control_address", settings.ControlAddress,
		"metrics_address", settings.MetricsAddress,
		"driver", settings.Hardware.Driver,
	)

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Controller stopped")

	return nil
}

// serveControl runs the gRPC control API until ctx is canceled.
func serveControl(ctx context.Context, server *grpc.Server, lis net.Listener) error {
	ctx = logger.WithName(ctx, "control")

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down control API")
		server.GracefulStop()
		close(done)
	}()

	logger.InfoKV(ctx, "Control API listening", "control_address", lis.Addr().String())

	if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve control API: %w", err)
	}

	<-done

	return nil
}

// serveMetrics exposes Prometheus metrics on /metrics until ctx is canceled.
func serveMetrics(ctx context.Context, address string, handler http.Handler) error {
	ctx = logger.WithName(ctx, "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Metrics listening", "metrics_address", address)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
