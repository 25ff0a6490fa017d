// Package preflight runs the environment checks behind `tutor doctor` and
// the first `tutor index` in a data directory: source directory presence,
// free disk space, write access, file descriptor limits, the PDF converter
// and reachability of the configured model backends.
//
//	checker := preflight.New(preflight.WithOutput(out))
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to index
//	}
package preflight
