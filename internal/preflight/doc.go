// Package preflight checks that a repository root can be indexed and
// served before a long operation starts.
//
// The package validates:
//   - The search engine answers its health check
//   - The submodule descriptor file lists at least one source
//   - Source directories are checked out
//   - The data dir is writable and its disk has room
//   - The file descriptor limit suffices for the watcher
//   - The index exists and holds documents
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(eng, cfg)
//	results := checker.RunAll(ctx, root)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
