// Package logger configures the process-wide slog JSON handler and carries
// request-scoped loggers through a context.Context.
package logger
