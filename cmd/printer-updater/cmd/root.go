package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/service/applier"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string

	// envPath to the optional .env file with secrets.
	envPath string

	// logLevel overrides the configured log level.
	logLevel string

	// buildOverride holds descriptor fields given on the command line.
	buildOverride build.Descriptor

	// rootCmd represents the base command for downloading and installing a build.
	rootCmd = &cobra.Command{
		Use:   "printer-updater",
		Short: "Download a printer build and install it",
		Long: "Download the requested build archive from the build-distribution server, " +
			"move the current build into the backup folder and extract the archive in its place.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Errors are already logged by the service.
			cmd.SilenceUsage = true

			options := &applier.Options{
				ConfigPath: configPath,
				DotEnvPath: envPath,
				Build:      buildOverride,
				LogLevel:   logLevel,
			}

			return applier.Run(ctx, options)
		},
	}
)

// Execute runs the printer-updater CLI and exits with non-zero status on error.
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
	flags.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	flags.StringVar(&buildOverride.PrinterType, "printer-type", "", "printer type override")
	flags.StringVar(&buildOverride.SubType, "sub-type", "", "printer sub-type override")
	flags.StringVar(&buildOverride.Make, "make", "", "printer make override")
	flags.IntVar(&buildOverride.BuildNumber, "build-number", 0, "build number override")
}
