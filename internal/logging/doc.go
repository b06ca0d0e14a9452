// Package logging configures slog handlers shared by the daemon and CLI.
// It provides a console handler for interactive use, a JSON handler for
// log files, and helpers for standardized attribute keys.
package logging
