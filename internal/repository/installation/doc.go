// Package installation manages the on-disk layout of an installed build.
//
// The FileRepository owns the live build directory and its backup sibling:
// it retires the live build into the backup directory and extracts a new
// build archive in its place. It exposes a Repository interface that the
// applier service depends on.
package installation
