package applier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/auth"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/repository/installation"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/repository/state"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/service/common"
)

// Options are inputs accepted by the applier entry point.
type Options struct {
	// ConfigPath is the optional path to the settings file.
	ConfigPath string
	// DotEnvPath is the optional path to a .env file with secrets.
	DotEnvPath string
	// Build overrides non-zero fields of the configured build descriptor.
	Build build.Descriptor
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// fetcher downloads the build archive. *common.Client satisfies it.
type fetcher interface {
	Download(ctx context.Context, endpoint string, body any, dst io.Writer) (int64, error)
}

// runner holds the inputs of a single update execution.
// It is intentionally unexported: call Run or Apply.
type runner struct {
	cfg        *config.Config          // Validated settings.
	descriptor build.Descriptor        // Build requested from the server.
	runID      string                  // Identifier of this run.
	client     fetcher                 // Archive transport.
	repo       installation.Repository // Build and backup directories.
	records    state.Repository        // Installed-build record.
	processes  processController       // Stops and starts build executables.
}

// runIDKey carries the run identifier from Run to Apply.
type runIDKey struct{}

// runIDFrom returns the identifier stored by Run or a fresh one.
func runIDFrom(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey{}).(string); ok && runID != "" {
		return runID
	}

	return uuid.NewString()
}

// Run loads the settings, applies the update and logs the outcome. It is the
// public entry point for the CLI; the returned error decides the exit status.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "printer-updater")

	if err := config.LoadDotEnv(opts.DotEnvPath); err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)
		return err
	}

	logLevel := cfg.LogLevel
	if opts.LogLevel != "" {
		logLevel = opts.LogLevel
	}

	logCloser, err := logger.Configure(logger.Options{Level: logLevel, File: cfg.LogFile})
	if err != nil {
		err = fmt.Errorf("%w: configure logging: %w", build.ErrConfig, err)
		logger.ErrorKV(ctx, "Update failed", "error", err)

		return err
	}

	defer func() {
		_ = logCloser.Close()
	}()

	// Configure replaced the global logger; rebuild the scoped one from it.
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, runIDKey{}, runID)
	ctx = logger.WithKV(
		logger.WithName(logger.ToContext(ctx, logger.Logger()), "printer-updater"),
		"run_id", runID,
	)

	if err = Apply(ctx, cfg, cfg.Build.Merge(opts.Build)); err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)
		return err
	}

	logger.Info(ctx, "Update complete")

	return nil
}

// Apply fetches the build described by descriptor and installs it following
// cfg. Errors wrap one of the build error kinds; ErrAlreadyRunning is returned
// when another update holds the installation.
func Apply(ctx context.Context, cfg *config.Config, descriptor build.Descriptor) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := descriptor.Validate(); err != nil {
		return fmt.Errorf("%w: build descriptor: %w", build.ErrConfig, err)
	}

	client, err := common.NewClient(
		ctx,
		cfg.ServerURL,
		auth.DownloadStrategy(cfg),
		common.WithCallTimeout(cfg.Timeout),
		common.WithRetries(cfg.Retries),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", build.ErrConfig, err)
	}

	defer func() {
		_ = client.Close()
	}()

	marker, err := acquireLock(ctx, cfg.LockPath())
	if err != nil {
		return err
	}

	defer marker.release(ctx)

	u := &runner{
		cfg:        cfg,
		descriptor: descriptor,
		runID:      runIDFrom(ctx),
		client:     client,
		repo:       installation.NewFileRepository(cfg.BuildPath(), cfg.BackupPath()),
		records:    state.NewFileRepository(cfg.StatePath()),
		processes:  osProcesses{},
	}

	return u.run(ctx)
}

// run executes the update steps in order:
// 1) Download the archive.
// 2) Stop running build processes, if configured.
// 3) Ensure the backup directory.
// 4) Retire the live build.
// 5) Extract the archive.
// 6) Delete the archive and record the installed build.
// 7) Start the build executable, if configured.
func (u *runner) run(ctx context.Context) error {
	u.logPreviousInstallation(ctx)

	logger.InfoKV(ctx, "Downloading zip file", "build", u.descriptor.String())

	size, err := u.downloadArchive(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "ZIP file downloaded", "path", u.cfg.ArchivePath(), "bytes", size)

	if len(u.cfg.StopProcesses) > 0 {
		logger.InfoKV(ctx, "Stopping running build processes", "names", u.cfg.StopProcesses)

		if err = u.processes.Terminate(ctx, u.cfg.StopProcesses); err != nil {
			return fmt.Errorf("%w: stop build processes: %w", build.ErrProcess, err)
		}
	}

	if err = u.repo.EnsureBackupDir(ctx); err != nil {
		return err
	}

	moved, err := u.repo.RetireBuild(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Retired previous build", "entries", len(moved))

	if _, err = u.repo.Install(ctx, u.cfg.ArchivePath()); err != nil {
		return err
	}

	u.removeArchive(ctx)
	u.recordInstallation(ctx)

	if u.cfg.StartExecutable != "" {
		if err = u.processes.Start(ctx, u.cfg.BuildPath(), u.cfg.StartExecutable); err != nil {
			return fmt.Errorf("%w: start %s: %w", build.ErrProcess, u.cfg.StartExecutable, err)
		}
	}

	return nil
}

// downloadArchive streams the archive into a temporary sibling of the archive
// path and renames it into place once the transfer is complete, so a failed
// download never replaces a previous archive.
func (u *runner) downloadArchive(ctx context.Context) (int64, error) {
	archivePath := u.cfg.ArchivePath()

	partial, err := os.CreateTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+"-*.part")
	if err != nil {
		return 0, fmt.Errorf("%w: create download file: %w", build.ErrFilesystem, err)
	}

	partialPath := partial.Name()
	committed := false

	defer func() {
		if !committed {
			_ = os.Remove(partialPath)
		}
	}()

	written, err := u.client.Download(ctx, u.cfg.DownloadEndpoint, u.descriptor, partial)

	closeErr := partial.Close()

	if err != nil {
		return written, err
	}

	if closeErr != nil {
		return written, fmt.Errorf("%w: write download file: %w", build.ErrFilesystem, closeErr)
	}

	if err = os.Rename(partialPath, archivePath); err != nil {
		return written, fmt.Errorf("%w: store %s: %w", build.ErrFilesystem, archivePath, err)
	}

	committed = true

	return written, nil
}

// removeArchive deletes the downloaded archive. Failure only warns: the new
// build is already installed.
func (u *runner) removeArchive(ctx context.Context) {
	archivePath := u.cfg.ArchivePath()

	if err := os.Remove(archivePath); err != nil {
		logger.WarnKV(ctx, "Could not delete downloaded zip file", "path", archivePath, "error", err)
		return
	}

	logger.InfoKV(ctx, "Deleted downloaded zip file", "path", archivePath)
}

// logPreviousInstallation logs the build recorded by the last successful run.
func (u *runner) logPreviousInstallation(ctx context.Context) {
	previous, err := u.records.Load(ctx)

	switch {
	case errors.Is(err, state.ErrNotFound):
		logger.Info(ctx, "No installed build recorded")
	case err != nil:
		logger.WarnKV(ctx, "Could not read installed build record", "error", err)
	default:
		logger.InfoKV(ctx, "Currently installed build",
			"build", previous.Build.String(),
			"installed_at", previous.InstalledAt,
			"run_id", previous.RunID,
		)
	}
}

// recordInstallation saves the installed build. Failure only warns.
func (u *runner) recordInstallation(ctx context.Context) {
	hostname, _ := os.Hostname()

	record := &build.Installation{
		Build:       u.descriptor,
		InstalledAt: time.Now().UTC(),
		RunID:       u.runID,
		Hostname:    hostname,
	}

	if err := u.records.Save(ctx, record); err != nil {
		logger.WarnKV(ctx, "Could not record installed build", "path", u.cfg.StatePath(), "error", err)
	}
}
