// Package preflight validates the environment before an ingest starts.
//
// The package validates:
//   - The input directory exists and can be listed
//   - Free disk space next to the database (minimum 100MB)
//   - Write permissions in the database directory
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, inputDir, dbPath)
//	if err := checker.Err(results); err != nil {
//	    // Handle failures
//	}
package preflight
