package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/agrosmart/internal/config"
	"github.com/oshokin/agrosmart/internal/service/client"
	"github.com/oshokin/agrosmart/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// controlAddress overrides the control API address from the configuration.
	controlAddress string
	// interval is the watch polling interval.
	interval time.Duration

	// rootCmd represents the base command for operating a controller.
	rootCmd = &cobra.Command{
		Use:   "agrosmart-ctl",
		Short: "Query and reset an AgroSmart controller.",
		Long: `Operator tool for an AgroSmart controller over its gRPC control API.

Every call makes the controller take a fresh moisture reading, exactly like
opening the status page. The operator's username and hostname are sent
along and appear in the controller log.`,
		SilenceUsage: true,
	}

	// statusCmd prints the status once.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current moisture and alert state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.Status(cmd.Context(), options(cmd))
		},
	}

	// resetCmd clears the alert.
	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Clear the latched alert.",
		Long: `Clears the latched alert and turns the LED and buzzer off, then takes a fresh
reading. If moisture is still below the threshold the alert latches again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.Reset(cmd.Context(), options(cmd))
		},
	}

	// watchCmd polls the status.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll the status until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options(cmd)
			opts.PollInterval = interval

			return client.Watch(cmd.Context(), opts)
		},
	}
)

// options builds client options from the persistent flags.
func options(cmd *cobra.Command) *client.Options {
	return &client.Options{
		ConfigPath:     configPath,
		ControlAddress: controlAddress,
		Output:         cmd.OutOrStdout(),
	}
}

// Execute runs the agrosmart-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&controlAddress, "address", "a", "", "control API address, overrides the configuration")

	watchCmd.Flags().DurationVarP(&interval, "interval", "i", client.DefaultPollInterval, "polling interval")

	rootCmd.AddCommand(statusCmd, resetCmd, watchCmd)
}
