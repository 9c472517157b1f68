// Package applier downloads a printer build and installs it in place of the
// current one.
//
// A run fetches the archive first and only then touches the installation:
// the live build directory is moved into the backup directory entry by entry
// and the archive is extracted into the emptied build directory. There is no
// automatic rollback; the backup directory is kept for manual recovery.
package applier
