package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestConfigure_WritesFile checks that scoped messages land in the rotating file with their fields.
//
//nolint:paralleltest // Mutates the global logger.
func TestConfigure_WritesFile(t *testing.T) {
	t.Cleanup(func() {
		SetLevel(zapcore.InfoLevel)
		SetLogger(New(defaultLevel))
	})

	path := filepath.Join(t.TempDir(), "agent.log")

	closer, err := Configure(Options{Level: "debug", File: path})
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, Level())

	ctx := WithKV(WithName(context.Background(), "printer-updater"), "run_id", "abc-123")
	InfoKV(ctx, "Downloading zip file", "url", "http://localhost/download")
	DebugKV(ctx, "debug line", "entry", "firmware.bin")

	require.NoError(t, closer.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "Downloading zip file")
	require.Contains(t, string(contents), "printer-updater")
	require.Contains(t, string(contents), "abc-123")
	require.Contains(t, string(contents), "debug line")
	require.Contains(t, string(contents), "INFO")
}

// TestConfigure_RejectsUnknownLevel ensures a typo in the level is reported instead of ignored.
//
//nolint:paralleltest // Mutates the global logger.
func TestConfigure_RejectsUnknownLevel(t *testing.T) {
	_, err := Configure(Options{Level: "verbose"})
	require.Error(t, err)
}

// TestFromContext_FallsBackToGlobal verifies the global logger is returned for bare contexts.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	scoped := New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), scoped)
	require.Same(t, scoped, FromContext(ctx))
}

// TestQuiet_RaisesLevel checks that Quiet drops entries below the level and never lowers it.
func TestQuiet_RaisesLevel(t *testing.T) {
	t.Parallel()

	verbose := ToContext(context.Background(), New(zapcore.DebugLevel))
	quiet := FromContext(Quiet(verbose, zapcore.WarnLevel))
	require.False(t, quiet.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.True(t, quiet.Desugar().Core().Enabled(zapcore.WarnLevel))

	strict := ToContext(context.Background(), New(zapcore.ErrorLevel))
	require.Same(t, FromContext(strict), FromContext(Quiet(strict, zapcore.WarnLevel)))
	require.False(t, FromContext(Quiet(strict, zapcore.WarnLevel)).Desugar().Core().Enabled(zapcore.WarnLevel))
}
