package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/service/metadata"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string

	// envPath to the optional .env file with secrets.
	envPath string

	// authMode overrides the configured authentication mode.
	authMode string

	// verbose enables informational logs.
	verbose bool

	// rootCmd represents the base command for printing build details.
	rootCmd = &cobra.Command{
		Use:   "build-details",
		Short: "Print build details published by the server",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			switch authMode {
			case "", config.AuthModeHeader, config.AuthModeJWT:
				return nil
			default:
				return fmt.Errorf("unsupported auth mode %q, use %s or %s",
					authMode, config.AuthModeHeader, config.AuthModeJWT)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cmd.SilenceUsage = true

			options := &metadata.Options{
				ConfigPath: configPath,
				DotEnvPath: envPath,
				AuthMode:   authMode,
				Verbose:    verbose,
				Output:     cmd.OutOrStdout(),
			}

			return metadata.Run(ctx, options)
		},
	}
)

// Execute runs the build-details CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&envPath, "env-file", config.DefaultDotEnvFilename, "path to optional .env file with secrets")
	flags.StringVar(&authMode, "auth", "", "authentication mode override (header or jwt)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log progress in addition to warnings and errors")
}
