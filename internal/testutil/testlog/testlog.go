package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a debug-level logger routed through the test's output,
// so protocol traces show up only on failure or -v runs.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
