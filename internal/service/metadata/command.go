package metadata

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/auth"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/service/common"
)

// Options configures the build-details command.
type Options struct {
	// ConfigPath to the settings file, defaults to the standard filename if empty.
	ConfigPath string

	// DotEnvPath to an optional .env file with secrets.
	DotEnvPath string

	// AuthMode overrides the configured authentication mode when set.
	AuthMode string

	// Verbose keeps informational logs; otherwise only warnings and errors are logged.
	Verbose bool

	// Output receives the response body. Defaults to stdout.
	Output io.Writer
}

// Run loads the settings, fetches build details and writes the raw body
// followed by a newline to the output.
func Run(ctx context.Context, opts *Options) error {
	if err := config.LoadDotEnv(opts.DotEnvPath); err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	logCloser, err := logger.Configure(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("%w: configure logging: %w", build.ErrConfig, err)
	}

	defer func() {
		_ = logCloser.Close()
	}()

	ctx = logger.ToContext(ctx, logger.Logger())
	if !opts.Verbose {
		// Stdout carries the response; keep it readable.
		ctx = logger.Quiet(ctx, zapcore.WarnLevel)
	}

	ctx = logger.WithName(ctx, "build-details")

	if opts.AuthMode != "" {
		cfg.AuthMode = opts.AuthMode
	}

	body, err := Fetch(ctx, cfg)
	if err != nil {
		logger.ErrorKV(ctx, "Fetching build details failed", "error", err)
		return err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	if _, err = fmt.Fprintln(output, string(body)); err != nil {
		return fmt.Errorf("write build details: %w", err)
	}

	return nil
}

// Fetch requests the details endpoint with the configured authentication
// strategy and returns the body unparsed. Errors wrap build.ErrConfig or
// build.ErrFetch.
func Fetch(ctx context.Context, cfg *config.Config) ([]byte, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	strategy, err := auth.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := common.NewClient(
		ctx,
		cfg.ServerURL,
		strategy,
		common.WithCallTimeout(cfg.Timeout),
		common.WithRetries(cfg.Retries),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", build.ErrConfig, err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Requesting build details", "endpoint", cfg.DetailsEndpoint, "auth_mode", cfg.AuthMode)

	body, err := client.Get(ctx, cfg.DetailsEndpoint)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Build details received", "bytes", len(body))

	return body, nil
}
