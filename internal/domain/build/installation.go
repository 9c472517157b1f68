package build

import "time"

// Installation records a build installed on this printer.
type Installation struct {
	// Build is the descriptor the archive was requested with.
	Build Descriptor `yaml:"build"`
	// InstalledAt is when extraction finished.
	InstalledAt time.Time `yaml:"installed_at"`
	// RunID identifies the update run in the logs.
	RunID string `yaml:"run_id"`
	// Hostname is the machine the build was installed on.
	Hostname string `yaml:"hostname,omitempty"`
}
