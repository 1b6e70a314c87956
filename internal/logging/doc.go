// Package logging configures slog for bananaindex.
//
// By default logs go to stderr as text. With --debug, JSON logs are also
// written to ~/.bananaindex/logs/bananaindex.log with size-based rotation,
// so long-running watch and serve processes leave a trail.
package logging
