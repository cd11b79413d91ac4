// Package logging configures log/slog for the retrieve command: JSON or
// text output on stderr, optionally mirrored into a size-rotated file.
// Library packages never configure logging themselves; they log through
// the *slog.Logger they are given or slog.Default().
package logging
