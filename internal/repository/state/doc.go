// Package state persists the record of the build installed on this printer.
//
// The FileRepository stores and loads the record as YAML on disk and exposes a
// Repository interface that the applier depends on.
package state
