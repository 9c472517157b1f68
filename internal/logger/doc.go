// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a timestamped console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - an optional rotating log file next to the console output,
//   - key-value helpers (InfoKV, WarnKV, etc.).
//
// Services accept a context and extract the logger from it, so a run ID or a
// component name attached once shows up on every line of that run.
package logger
