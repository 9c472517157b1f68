package applier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
)

// ErrAlreadyRunning is returned when another update holds the installation.
var ErrAlreadyRunning = errors.New("another update is running")

// errMarkerReplaced is returned when a marker judged stale was replaced by a
// live one before it could be taken over.
var errMarkerReplaced = errors.New("update marker was replaced by another updater")

// markerGracePeriod protects a marker whose owner has not written its PID yet.
const markerGracePeriod = 30 * time.Second

// lockMarker is the PID file that keeps a single updater per installation.
type lockMarker struct {
	// path is the marker location.
	path string
	// info identifies the file this updater created.
	info os.FileInfo
}

// markerState is what an updater observed in an existing marker.
type markerState struct {
	// info identifies the observed file.
	info os.FileInfo
	// pid is the recorded owner, zero when unreadable.
	pid int
	// alive reports whether the owner still runs.
	alive bool
}

// acquireLock creates the marker at path. A marker left behind by a dead
// process is taken over and the creation is retried once.
func acquireLock(ctx context.Context, path string) (*lockMarker, error) {
	logger.InfoKV(ctx, "Checking for the presence of an update marker", "path", path)

	for attempt := 0; attempt < 2; attempt++ {
		marker, err := createMarker(path)
		if err == nil {
			return marker, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: create update marker %s: %w", build.ErrFilesystem, path, err)
		}

		observed, err := inspectMarker(path)
		if errors.Is(err, os.ErrNotExist) {
			// Released in the meantime.
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("%w: inspect update marker %s: %w", build.ErrFilesystem, path, err)
		}

		if observed.alive {
			return nil, fmt.Errorf("%w: marker %s held by pid %d", ErrAlreadyRunning, path, observed.pid)
		}

		logger.InfoKV(ctx, "The update marker is stale, removing it", "path", path, "pid", observed.pid)

		if err = takeOverMarker(path, observed); err != nil {
			if errors.Is(err, errMarkerReplaced) {
				return nil, fmt.Errorf("%w: %w", ErrAlreadyRunning, err)
			}

			return nil, fmt.Errorf("%w: remove stale marker %s: %w", build.ErrFilesystem, path, err)
		}
	}

	return nil, fmt.Errorf("%w: marker %s keeps reappearing", ErrAlreadyRunning, path)
}

// release removes the marker if it is still the one this updater created.
// Failure only warns.
func (l *lockMarker) release(ctx context.Context) {
	current, err := os.Lstat(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Could not check update marker", "path", l.path, "error", err)
		}

		return
	}

	if !sameMarker(current, l.info) {
		logger.WarnKV(ctx, "Update marker belongs to another updater, leaving it", "path", l.path)
		return
	}

	if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Could not remove update marker", "path", l.path, "error", err)
	}
}

func createMarker(path string) (*lockMarker, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return nil, err
	}

	_, writeErr := file.WriteString(strconv.Itoa(os.Getpid()))
	info, statErr := file.Stat()

	if err = errors.Join(writeErr, statErr, file.Close()); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &lockMarker{path: path, info: info}, nil
}

// inspectMarker reports the PID recorded in the marker and whether that
// process still runs. An empty marker younger than markerGracePeriod counts
// as alive.
func inspectMarker(path string) (markerState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return markerState{}, err
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return markerState{}, err
	}

	observed := markerState{info: info}

	text := strings.TrimSpace(string(contents))
	if text == "" {
		observed.alive = time.Since(info.ModTime()) <= markerGracePeriod
		return observed, nil
	}

	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return observed, nil
	}

	observed.pid = pid

	if pid == os.Getpid() {
		observed.alive = true
		return observed, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		// Unknown state; keep the marker.
		observed.alive = true
		return observed, nil
	}

	observed.alive = process != nil

	return observed, nil
}

// takeOverMarker moves the stale marker out of the way and deletes it. The
// rename is atomic, so of several updaters only one moves a given file. When
// the moved file is not the one judged stale or no longer looks stale, it is
// put back and errMarkerReplaced is returned.
func takeOverMarker(path string, observed markerState) error {
	aside := path + ".stale-" + strconv.Itoa(os.Getpid())

	if err := os.Rename(path, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Another updater took it over first.
			return nil
		}

		return err
	}

	moved, err := inspectMarker(aside)
	if err != nil {
		return err
	}

	if moved.alive || !sameMarker(moved.info, observed.info) {
		// Link fails when the path is taken again, so a newer marker is never overwritten.
		linkErr := os.Link(aside, path)

		switch {
		case linkErr == nil, errors.Is(linkErr, os.ErrExist):
			_ = os.Remove(aside)
		case os.Rename(aside, path) != nil:
			// No hard links here and the rename back failed too.
			return errors.Join(errMarkerReplaced, linkErr)
		}

		return errMarkerReplaced
	}

	return os.Remove(aside)
}

// sameMarker reports whether two observations are of the same marker file.
// Modification times guard against a freed inode being reused.
func sameMarker(a, b os.FileInfo) bool {
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime())
}
