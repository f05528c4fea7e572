package testutil

// FixedRunID returns the same run id every time.
//
// Unlike engine.UUIDv7Generator, output is stable across runs, which keeps
// ledger rows and JSON output comparable in tests.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID string

// Generate implements engine.RunIDGenerator.
// An empty FixedRunID yields "test-run-default".
func (id FixedRunID) Generate() string {
	if id == "" {
		return "test-run-default"
	}
	return string(id)
}
