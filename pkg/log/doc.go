/*
Package log provides structured logging for Ridgeline using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Ridgeline packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: detailed debugging information
  - Info: general informational messages
  - Warn: warning messages (potential issues)
  - Error: error messages (operation failed)
  - Fatal: critical errors (process exits)

Configuration:
  - Level: filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: add a component name to all logs
  - WithProject: add a project field
  - WithRepository: add project and repo fields
  - WithRevision: add a revision field

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	commitLog := log.WithRepository("acme", "configs")
	commitLog.Info().Int64("revision", int64(rev)).Msg("commit applied")

	log.Logger.Error().
		Err(err).
		Str("project", "acme").
		Msg("push rejected")

# Integration Points

This package is used by the commit engine, the revision log, the replicated
command executor, the metadata layer, and the mirror scheduler — every
component that reports state transitions or failures logs through a child
logger obtained from here rather than constructing its own zerolog instance.

# Security

Never log secrets or sensitive data such as app-identity tokens and mirror
credentials; this package does not redact field values.
*/
package log
