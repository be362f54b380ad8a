// Package shared holds helpers used by more than one package of the panel
// pipeline that belong to no single stage.
//
// The testutil subpackage provides a capturing slog handler so tests can
// assert on the structured logs a stage emits:
//
//	logger, handler := testutil.NewTestLogger(t)
//	loader := ingest.NewLoader(nil, nil, discovery, logger)
//	...
//	testutil.AssertLogAttr(t, handler, "raw", "Atlantis")
package shared
