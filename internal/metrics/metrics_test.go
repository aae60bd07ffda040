package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAggregation(t *testing.T) {
	before := testutil.ToFloat64(aggregationsTotal.WithLabelValues("project_progress", ResultSuccess))
	beforeErr := testutil.ToFloat64(aggregationsTotal.WithLabelValues("project_progress", ResultError))

	ObserveAggregation("project_progress", nil, 5*time.Millisecond)
	ObserveAggregation("project_progress", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(aggregationsTotal.WithLabelValues("project_progress", ResultSuccess)); got != before+1 {
		t.Errorf("expected success counter %f, got %f", before+1, got)
	}
	if got := testutil.ToFloat64(aggregationsTotal.WithLabelValues("project_progress", ResultError)); got != beforeErr+1 {
		t.Errorf("expected error counter %f, got %f", beforeErr+1, got)
	}
	if val := testutil.CollectAndCount(aggregationDurationSeconds); val <= 0 {
		t.Errorf("expected aggregation durations to be observed, got %d", val)
	}
}

func TestObserveEntryLogged(t *testing.T) {
	before := testutil.ToFloat64(entriesLoggedTotal.WithLabelValues("unknown"))
	beforeQty := testutil.ToFloat64(quantityLoggedTotal)

	ObserveEntryLogged("", 4)
	ObserveEntryLogged("", 0)

	if got := testutil.ToFloat64(entriesLoggedTotal.WithLabelValues("unknown")); got != before+2 {
		t.Errorf("expected entry counter %f, got %f", before+2, got)
	}
	if got := testutil.ToFloat64(quantityLoggedTotal); got != beforeQty+4 {
		t.Errorf("expected quantity counter %f, got %f", beforeQty+4, got)
	}
}

func TestObserveReportExport(t *testing.T) {
	before := testutil.ToFloat64(reportsExportedTotal.WithLabelValues(ResultError))
	ObserveReportExport(errors.New("disk full"))
	if got := testutil.ToFloat64(reportsExportedTotal.WithLabelValues(ResultError)); got != before+1 {
		t.Errorf("expected export error counter %f, got %f", before+1, got)
	}
}

func TestObserveRateLimited(t *testing.T) {
	before := testutil.ToFloat64(rateLimitedTotal.WithLabelValues("/v1/entries"))
	ObserveRateLimited("/v1/entries")
	if got := testutil.ToFloat64(rateLimitedTotal.WithLabelValues("/v1/entries")); got != before+1 {
		t.Errorf("expected rate limited counter %f, got %f", before+1, got)
	}
}
