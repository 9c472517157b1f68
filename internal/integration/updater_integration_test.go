package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/repository/state"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/service/applier"
)

var (
	firstBuild  = build.Descriptor{PrinterType: "Prime", SubType: "5K", Make: "MK2", BuildNumber: 1}
	secondBuild = build.Descriptor{PrinterType: "Prime", SubType: "5K", Make: "MK2", BuildNumber: 2}
)

// installIn prepares an installation in a fresh working directory with default paths.
func installIn(t *testing.T, serverURL string, descriptor build.Descriptor) {
	t.Helper()

	t.Chdir(t.TempDir())

	require.NoError(t, config.Save(config.DefaultConfigFilename, &config.Config{
		ServerURL: serverURL,
		AuthToken: sharedSecret,
		Build:     descriptor,
	}))
}

// TestUpdater_SuccessiveUpdates installs two builds in a row with default paths
// and checks each retires the previous one.
func TestUpdater_SuccessiveUpdates(t *testing.T) {
	preserveLogger(t)

	srv := startDistributionServer(t)
	srv.publish(t, firstBuild, map[string]string{"firmware.bin": "v1", "profiles/a.json": "{}"})
	srv.publish(t, secondBuild, map[string]string{"firmware.bin": "v2"})

	installIn(t, srv.URL, firstBuild)

	ctx := context.Background()

	require.NoError(t, applier.Run(ctx, &applier.Options{}))
	require.Equal(t, map[string]string{
		".":               "<dir>",
		"firmware.bin":    "v1",
		"profiles":        "<dir>",
		"profiles/a.json": "{}",
	}, tree(t, config.DefaultBuildDir))
	require.Equal(t, map[string]string{".": "<dir>"}, tree(t, config.DefaultBackupDir))

	require.NoError(t, applier.Run(ctx, &applier.Options{Build: build.Descriptor{BuildNumber: 2}}))
	require.Equal(t, map[string]string{
		".":            "<dir>",
		"firmware.bin": "v2",
	}, tree(t, config.DefaultBuildDir))
	require.Equal(t, map[string]string{
		".":               "<dir>",
		"firmware.bin":    "v1",
		"profiles":        "<dir>",
		"profiles/a.json": "{}",
	}, tree(t, config.DefaultBackupDir))

	require.NoFileExists(t, config.DefaultArchiveFile)
	require.NoFileExists(t, config.DefaultLockFile)

	record, err := state.NewFileRepository(config.DefaultStateFile).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, secondBuild, record.Build)
}

// TestUpdater_UnknownBuildKeepsInstallation checks a 404 from the server leaves the installation as it was.
func TestUpdater_UnknownBuildKeepsInstallation(t *testing.T) {
	preserveLogger(t)

	srv := startDistributionServer(t)
	installIn(t, srv.URL, firstBuild)

	writeFile(t, "build/a", "live a")
	writeFile(t, "build/b", "live b")
	writeFile(t, "backup/old", "older build")

	before := tree(t, ".")

	err := applier.Run(context.Background(), &applier.Options{})
	require.ErrorIs(t, err, build.ErrFetch)
	require.Equal(t, before, tree(t, "."))
}

// TestUpdater_WrongSecretKeepsInstallation checks a 403 from the server leaves the installation as it was.
func TestUpdater_WrongSecretKeepsInstallation(t *testing.T) {
	preserveLogger(t)

	srv := startDistributionServer(t)
	srv.publish(t, firstBuild, map[string]string{"firmware.bin": "v1"})

	t.Chdir(t.TempDir())
	require.NoError(t, config.Save(config.DefaultConfigFilename, &config.Config{
		ServerURL: srv.URL,
		AuthToken: "stolen",
		Build:     firstBuild,
	}))

	writeFile(t, "build/a", "live a")

	before := tree(t, ".")

	err := applier.Run(context.Background(), &applier.Options{})
	require.ErrorIs(t, err, build.ErrFetch)
	require.Equal(t, before, tree(t, "."))
}

// TestUpdater_IncompleteDescriptor checks a missing descriptor field fails before contacting the server.
func TestUpdater_IncompleteDescriptor(t *testing.T) {
	preserveLogger(t)

	srv := startDistributionServer(t)
	installIn(t, srv.URL, build.Descriptor{PrinterType: "Prime"})

	err := applier.Run(context.Background(), &applier.Options{})
	require.ErrorIs(t, err, build.ErrConfig)
	require.Nil(t, tree(t, config.DefaultBuildDir))
	require.Nil(t, tree(t, config.DefaultBackupDir))
}
