package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/service/common"
	"github.com/oshokin/agrosmart/internal/service/controller"
	"github.com/oshokin/agrosmart/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// allowMultiple skips the single-instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the controller.
	rootCmd = &cobra.Command{
		Use:   "agrosmart-server [listen-address]",
		Short: "Run the soil-moisture controller and its status page.",
		Long: `Samples the soil-moisture probe, latches the LED and buzzer alert when moisture
drops below 30% and serves a status page with a reset button.

The alert stays latched until it is reset from the page (/resetar) or with
agrosmart-ctl, even if moisture recovers. The status page address can be
provided as argument to override the configuration (e.g., :8080).
A gRPC control API and optional Prometheus metrics are served on the
addresses from the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if !allowMultiple {
				if err := common.EnsureSingleInstance(); err != nil {
					return err
				}
			}

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &controller.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			}

			return controller.Run(ctx, options)
		},
	}
)

// Execute runs the agrosmart-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	// Hidden flag for running a second simulated controller next to a real one.
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")

	err := rootCmd.Flags().MarkHidden("allow-multiple")
	if err != nil {
		panic(err)
	}
}
