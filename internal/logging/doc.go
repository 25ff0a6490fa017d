// Package logging sets up structured slog output for tutor.
// Without --debug, logs go to stderr only. With --debug, JSON logs are also
// written to ~/.tutor/logs/tutor.log with size-based rotation.
package logging
