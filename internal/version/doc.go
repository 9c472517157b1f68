// Package version exposes build metadata for the agent binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
// The same string is sent as the HTTP User-Agent so the build server can tell
// agent releases apart in its access log.
package version
