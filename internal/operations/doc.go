// Package operations runs the panel build as a sequence of steps.
//
// A Step is one unit of work with dependencies on other steps. The Registry
// orders registered steps topologically, keeping registration order among
// steps that become ready together. The Manager executes them one at a time
// under a per-step timeout, stops at the first failure and skips what
// depended on it.
//
// The build registers these steps:
//
//	load       read every configured source and normalize it to months
//	worldbank  fetch annual indicators (only when enabled)
//	merge      fold the monthly tables into one panel, then derive the spread and lags
//	audit      measure coverage against the expected countries
//	export     write the panel, reports and the optional SQLite mirror
//
// Failures follow one taxonomy. Unresolved identifiers, malformed rows and
// failed World Bank requests are recoverable: the record or request is
// skipped, counted in OperationState.Drops and kept in
// OperationState.Warnings. An empty source or a non-unique join key is fatal
// and ends the run with an OperationError.
//
// Example usage:
//
//	deps, err := operations.NewDependencies(cfg, nil, tracer, logger)
//	manager, err := operations.NewPipeline(cfg, deps)
//	state, err := manager.Run(ctx, operations.OperationRequest{})
package operations
