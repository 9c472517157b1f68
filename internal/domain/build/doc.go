// Package build contains core domain types for printer build distribution.
//
// It defines Descriptor (which build a printer asks the server for) and the
// error kinds shared by every stage of an update run.
package build
