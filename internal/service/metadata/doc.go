// Package metadata fetches the build catalogue published by the
// build-distribution server and hands the raw response to the caller.
package metadata
