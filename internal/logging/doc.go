// Package logging provides a simple leveled logging interface for the
// InstantSaver service, backed by logrus.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including subprocess diagnostics
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true), and the output format via LOG_FORMAT (text or json).
package logging
