package applier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
)

var errUnsafeExecutable = errors.New("executable must be a relative path inside the build directory")

// processController stops and starts build executables.
type processController interface {
	// Terminate kills every running process whose executable name is listed.
	Terminate(ctx context.Context, names []string) error
	// Start launches name from dir without waiting for it.
	Start(ctx context.Context, dir, name string) error
}

// osProcesses controls real operating system processes.
type osProcesses struct{}

// Terminate kills matching processes except the current one. On Linux the
// process name is the kernel command name, truncated to 15 characters.
func (osProcesses) Terminate(ctx context.Context, names []string) error {
	targets := sliceToSet(names)

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if _, found := targets[process.Executable()]; !found {
			continue
		}

		runningProcess, findErr := os.FindProcess(process.Pid())
		if findErr != nil {
			return fmt.Errorf("find process %d: %w", process.Pid(), findErr)
		}

		if killErr := runningProcess.Kill(); killErr != nil {
			if errors.Is(killErr, os.ErrProcessDone) {
				continue
			}

			return fmt.Errorf("kill %s (pid %d): %w", process.Executable(), process.Pid(), killErr)
		}

		logger.InfoKV(ctx, "Killed running process", "name", process.Executable(), "pid", process.Pid())
	}

	return nil
}

// Start launches the executable detached from the updater: the process is
// released so it outlives the updater and its context.
func (osProcesses) Start(ctx context.Context, dir, name string) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%s: %w", name, errUnsafeExecutable)
	}

	executable := filepath.Join(dir, filepath.FromSlash(name))

	logger.InfoKV(ctx, "Starting executable", "executable", executable)

	cmd := exec.Command(executable) //nolint:gosec,noctx // Path is confined to the build directory; the process must outlive ctx.
	cmd.Dir = dir

	if err := cmd.Start(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Executable started", "executable", executable, "pid", cmd.Process.Pid)

	return cmd.Process.Release()
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
