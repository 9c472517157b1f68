// Package common holds helpers shared by several services.
//
// It provides a lightweight HTTP client for the build-distribution server with
// per-call timeouts, pluggable authentication and streaming downloads.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
