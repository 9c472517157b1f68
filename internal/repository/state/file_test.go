package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	record, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, record)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns the same record.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "installed-build.yaml")
	repo := NewFileRepository(file)

	want := &build.Installation{
		Build:       build.Descriptor{PrinterType: "Prime", SubType: "5K", Make: "MK2", BuildNumber: 12},
		InstalledAt: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
		RunID:       "7b0c7a35-0d45-4c1e-9a59-4cb1d0b0c3a1",
		Hostname:    "printer-07",
	}

	require.NoError(t, repo.Save(context.Background(), want))
	require.NoFileExists(t, file+".tmp")

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Build, got.Build)
	require.True(t, want.InstalledAt.Equal(got.InstalledAt))
	require.Equal(t, want.RunID, got.RunID)
	require.Equal(t, want.Hostname, got.Hostname)

	// A later save replaces the record.
	want.Build.BuildNumber = 13
	require.NoError(t, repo.Save(context.Background(), want))

	got, err = repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 13, got.Build.BuildNumber)
}

// TestFileRepository_Failures verifies decode and write problems are filesystem errors.
func TestFileRepository_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.yaml")
	require.NoError(t, os.WriteFile(corrupt, []byte("build: [unclosed"), 0o600))

	_, err := NewFileRepository(corrupt).Load(context.Background())
	require.ErrorIs(t, err, build.ErrFilesystem)

	unwritable := NewFileRepository(filepath.Join(dir, "absent", "record.yaml"))
	err = unwritable.Save(context.Background(), &build.Installation{})
	require.ErrorIs(t, err, build.ErrFilesystem)

	require.Error(t, unwritable.Save(context.Background(), nil))
}
