// Package logging constructs the slog loggers used throughout kinotek and
// provides typed attribute helpers so field names stay consistent between
// the pipeline components and the CLI.
package logging
