package integration

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
)

// preserveLogger restores the global logger that Run replaces.
func preserveLogger(t *testing.T) {
	t.Helper()

	previous := logger.Logger()
	previousLevel := logger.Level()

	t.Cleanup(func() {
		logger.SetLogger(previous)
		logger.SetLevel(previousLevel)
	})
}

// tree maps every path under root to its content ("<dir>" for directories).
// A missing root yields nil.
func tree(t *testing.T, root string) map[string]string {
	t.Helper()

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	result := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if entry.IsDir() {
			result[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		result[filepath.ToSlash(rel)] = string(contents)

		return nil
	})
	require.NoError(t, err)

	return result
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
