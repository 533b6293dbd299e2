package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/health", "200"))
	RecordAPIRequest("GET", "/api/health", 200, 3*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/health", "200"))
	if after != before+1 {
		t.Errorf("expected counter +1, got %v -> %v", before, after)
	}
}

func TestRecordCatalogLoad(t *testing.T) {
	before := testutil.ToFloat64(CatalogLoads.WithLabelValues("missing"))
	RecordCatalogLoad("missing", 0)
	if got := testutil.ToFloat64(CatalogLoads.WithLabelValues("missing")); got != before+1 {
		t.Errorf("missing loads: got %v, want %v", got, before+1)
	}
	RecordCatalogLoad("loaded", 12)
	if got := testutil.ToFloat64(CatalogSize); got != 12 {
		t.Errorf("catalog size: got %v, want 12", got)
	}
}

func TestRecordMatch(t *testing.T) {
	tests := []struct {
		kind, outcome string
	}{
		{"keywords", "matched"},
		{"keywords", "fallback"},
		{"photo", "none"},
		{"exercise", "matched"},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.outcome, func(t *testing.T) {
			c := MatchOutcomes.WithLabelValues(tt.kind, tt.outcome)
			before := testutil.ToFloat64(c)
			RecordMatch(tt.kind, tt.outcome)
			if got := testutil.ToFloat64(c); got != before+1 {
				t.Errorf("got %v, want %v", got, before+1)
			}
		})
	}
}

func TestRecordTutorRequest(t *testing.T) {
	// Histograms are not readable with ToFloat64; collecting must not panic
	// and both label values must exist afterwards.
	RecordTutorRequest(time.Second, nil)
	RecordTutorRequest(2*time.Second, errors.New("boom"))
	if n := testutil.CollectAndCount(TutorRequestDuration); n < 2 {
		t.Errorf("expected at least 2 series, got %d", n)
	}
}

func TestRecordUpload(t *testing.T) {
	RecordUpload(200*1024, 15*time.Millisecond)
	if n := testutil.CollectAndCount(UploadBytes); n != 1 {
		t.Errorf("expected 1 upload histogram, got %d", n)
	}
}
