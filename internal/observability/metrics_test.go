package observability

import "testing"

func TestMetricsSnapshotIsACopy(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordRequest("/tickets", "GET", 200, 0)
	metrics.RecordError("/tickets", "GET", "ERR_MALFORMED_FILTER")
	metrics.RecordHookFailure("farewell")
	metrics.RecordEvent("open", "update")
	metrics.RecordEvent("open", "update")

	snapshot := metrics.Snapshot()
	if snapshot.Requests["/tickets|GET|200"] != 1 {
		t.Errorf("requests = %v", snapshot.Requests)
	}
	if snapshot.Errors["/tickets|GET|ERR_MALFORMED_FILTER"] != 1 {
		t.Errorf("errors = %v", snapshot.Errors)
	}
	if snapshot.HookFailures["farewell"] != 1 {
		t.Errorf("hook failures = %v", snapshot.HookFailures)
	}
	if snapshot.Events["open|update"] != 2 {
		t.Errorf("events = %v", snapshot.Events)
	}

	snapshot.Events["open|update"] = 100
	if metrics.Snapshot().Events["open|update"] != 2 {
		t.Error("mutating a snapshot must not affect the counters")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordRequest("/", "GET", 200, 0)
	metrics.RecordHookFailure("broadcast")
	if len(metrics.Snapshot().Requests) != 0 {
		t.Error("nil metrics must report nothing")
	}
}
