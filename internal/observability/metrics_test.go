package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordPackageSent("peer-0", "parameter.update", 1, 5)
	RecordPackageReceived("peer-1", "parameter.update", 0, 5)
	RecordHTTPRequest("peer-0", "GET", "/health", 200, 12*time.Millisecond)
}
