package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
)

// Repository defines persistence operations for the installed-build record.
type Repository interface {
	Load(ctx context.Context) (*build.Installation, error)
	Save(ctx context.Context, installation *build.Installation) error
}

// FileRepository persists the installed-build record to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the record.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no build has been recorded yet.
	ErrNotFound = errors.New("installed build not recorded")
	// errEmptyRecord is returned when Save receives nil.
	errEmptyRecord = errors.New("installation record is not set")
)

// NewFileRepository creates a repository that reads and writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*build.Installation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("%w: read installed build record: %w", build.ErrFilesystem, err)
	}

	var installation build.Installation
	if err = yaml.Unmarshal(contents, &installation); err != nil {
		return nil, fmt.Errorf("%w: decode installed build record: %w", build.ErrFilesystem, err)
	}

	return &installation, nil
}

// Save writes the record next to its final location and renames it into place.
func (r *FileRepository) Save(_ context.Context, installation *build.Installation) error {
	if installation == nil {
		return errEmptyRecord
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(installation)
	if err != nil {
		return fmt.Errorf("encode installed build record: %w", err)
	}

	temporary := r.path + ".tmp"
	if err = os.WriteFile(temporary, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("%w: write installed build record: %w", build.ErrFilesystem, err)
	}

	if err = os.Rename(temporary, r.path); err != nil {
		_ = os.Remove(temporary)

		return fmt.Errorf("%w: replace installed build record: %w", build.ErrFilesystem, err)
	}

	return nil
}
