package build

import "errors"

// Error kinds reported by the agent. Concrete errors wrap one of these together
// with their cause, so callers can match both with errors.Is.
var (
	// ErrConfig marks missing or malformed configuration.
	ErrConfig = errors.New("configuration error")
	// ErrFetch marks transport failures and non-success HTTP statuses.
	ErrFetch = errors.New("fetch error")
	// ErrFilesystem marks directory creation, move and delete failures.
	ErrFilesystem = errors.New("filesystem error")
	// ErrExtract marks corrupt or unreadable archives.
	ErrExtract = errors.New("extract error")
	// ErrProcess marks failures to stop or start build executables.
	ErrProcess = errors.New("process error")
)
