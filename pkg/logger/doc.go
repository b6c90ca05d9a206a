// Package logger builds the structured log/slog logger shared by both
// listeners. Output format follows the environment and the level follows
// configuration, with verbose mode resolved to debug by the caller.
package logger
