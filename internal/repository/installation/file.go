package installation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/klauspost/compress/zip"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
)

// Repository defines the filesystem steps of an update.
type Repository interface {
	// EnsureBackupDir creates the backup directory if it is missing.
	EnsureBackupDir(ctx context.Context) error
	// RetireBuild moves the live build into the backup directory and returns
	// the moved entry names. A missing build directory is created empty.
	RetireBuild(ctx context.Context) ([]string, error)
	// Install extracts the archive into the build directory and returns the
	// number of files written.
	Install(ctx context.Context, archivePath string) (int, error)
}

// FileRepository implements Repository on the local filesystem.
// Callers must not run two updates against the same directories at once.
type FileRepository struct {
	// buildDir is the live build directory.
	buildDir string
	// backupDir receives the retired build.
	backupDir string
}

// defaultFileMode is applied to archive entries that carry no permission bits.
const defaultFileMode os.FileMode = 0o644

var (
	// errNotDirectory is returned when a managed path exists but is not a directory.
	errNotDirectory = errors.New("not a directory")
	// errNestedDirectories is returned when the backup directory lives inside the build directory.
	errNestedDirectories = errors.New("backup directory must not be inside the build directory")
	// errUnsafeEntry is returned for archive entries that would land outside the build directory.
	errUnsafeEntry = errors.New("archive entry escapes the build directory")
)

// NewFileRepository creates a repository for the given build and backup directories.
func NewFileRepository(buildDir, backupDir string) *FileRepository {
	return &FileRepository{
		buildDir:  filepath.Clean(buildDir),
		backupDir: filepath.Clean(backupDir),
	}
}

// EnsureBackupDir creates the backup directory. It is idempotent.
func (r *FileRepository) EnsureBackupDir(ctx context.Context) error {
	info, err := os.Stat(r.backupDir)

	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%w: %s: %w", build.ErrFilesystem, r.backupDir, errNotDirectory)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: stat backup folder: %w", build.ErrFilesystem, err)
	}

	if err = os.MkdirAll(r.backupDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("%w: create backup folder: %w", build.ErrFilesystem, err)
	}

	logger.InfoKV(ctx, "Created backup folder", "path", r.backupDir)

	return nil
}

// RetireBuild moves every entry of the build directory into the backup
// directory, one at a time. An entry already present in the backup directory
// is replaced. A failure stops the sequence and leaves both directories
// partially populated; the names moved so far are returned with the error.
func (r *FileRepository) RetireBuild(ctx context.Context) ([]string, error) {
	info, err := os.Stat(r.buildDir)
	if errors.Is(err, os.ErrNotExist) {
		if err = os.MkdirAll(r.buildDir, config.DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("%w: create build folder: %w", build.ErrFilesystem, err)
		}

		logger.InfoKV(ctx, "Created build folder", "path", r.buildDir)

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: stat build folder: %w", build.ErrFilesystem, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s: %w", build.ErrFilesystem, r.buildDir, errNotDirectory)
	}

	nested, err := isWithin(r.buildDir, r.backupDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve folders: %w", build.ErrFilesystem, err)
	}

	if nested {
		return nil, fmt.Errorf("%w: %w", build.ErrFilesystem, errNestedDirectories)
	}

	entries, err := os.ReadDir(r.buildDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list build folder: %w", build.ErrFilesystem, err)
	}

	moved := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()

		err = moveEntry(filepath.Join(r.buildDir, name), filepath.Join(r.backupDir, name))
		if err != nil {
			return moved, fmt.Errorf("%w: move %s to backup folder: %w", build.ErrFilesystem, name, err)
		}

		moved = append(moved, name)

		logger.InfoKV(ctx, "Moved entry to backup folder", "entry", name)
	}

	return moved, nil
}

// Install extracts every entry of the archive into the build directory,
// keeping the archive's relative paths. Each file is swapped in atomically.
func (r *FileRepository) Install(ctx context.Context, archivePath string) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", build.ErrExtract, archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	installed := 0

	for _, file := range reader.File {
		target, err := r.targetPath(file.Name)
		if err != nil {
			return installed, err
		}

		if file.FileInfo().IsDir() {
			if err = os.MkdirAll(target, config.DefaultDirPermissions); err != nil {
				return installed, directoryError(file.Name, err)
			}

			continue
		}

		if err = os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
			return installed, directoryError(file.Name, err)
		}

		if err = installFile(file, target); err != nil {
			return installed, err
		}

		installed++

		logger.DebugKV(ctx, "Extracted entry", "entry", file.Name)
	}

	logger.InfoKV(ctx, "Extracted zip contents", "path", r.buildDir, "files", installed)

	return installed, nil
}

// targetPath maps an archive entry name to its destination, rejecting
// absolute names and names that climb out of the build directory.
func (r *FileRepository) targetPath(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q: %w", build.ErrExtract, name, errUnsafeEntry)
	}

	return filepath.Join(r.buildDir, local), nil
}

// directoryError classifies a failed directory creation for entry name. The
// build directory is empty before extraction, so a path component that is
// already a file came from an earlier entry of the same archive.
func directoryError(name string, err error) error {
	if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s conflicts with another archive entry: %w", build.ErrExtract, name, err)
	}

	return fmt.Errorf("%w: create directory for %s: %w", build.ErrFilesystem, name, err)
}

// installFile applies a single archive entry to target with go-update.
func installFile(file *zip.File, target string) error {
	contents, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", build.ErrExtract, file.Name, err)
	}

	defer func() {
		_ = contents.Close()
	}()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = defaultFileMode
	}

	// go-update swaps the target aside before renaming the new file in,
	// so the target has to exist.
	created, err := ensureFile(target, mode)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", build.ErrFilesystem, file.Name, err)
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
	}

	if err = goupdate.Apply(contents, options); err != nil {
		if created {
			_ = os.Remove(target)
		}

		return fmt.Errorf("%w: write %s: %w", build.ErrExtract, file.Name, err)
	}

	return nil
}

// ensureFile creates an empty file at path when nothing exists there yet.
func ensureFile(path string, mode os.FileMode) (bool, error) {
	if _, err := os.Lstat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	placeholder, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return false, err
	}

	return true, placeholder.Close()
}

// moveEntry renames src to dst, replacing whatever dst holds.
func moveEntry(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		if err = os.RemoveAll(dst); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return os.Rename(src, dst)
}

// isWithin reports whether child is parent itself or lies below it.
func isWithin(parent, child string) (bool, error) {
	absParent, err := filepath.Abs(parent)
	if err != nil {
		return false, err
	}

	absChild, err := filepath.Abs(child)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(absParent, absChild)
	if err != nil {
		// Different volumes.
		return false, nil //nolint:nilerr // Unrelated paths are not nested.
	}

	return filepath.IsLocal(rel), nil
}
