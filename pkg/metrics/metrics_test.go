package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/FiratKiziltepe/pagebatch/pkg/cache"
	_ "github.com/FiratKiziltepe/pagebatch/pkg/orchestrator"
	_ "github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestCatalogueRegistered(t *testing.T) {
	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}

	// Vectors only appear once a label set is used, so only plain metrics
	// are checked here.
	for _, name := range []string{
		"pagebatch_limiter_queue_length",
		"pagebatch_limiter_admissions_total",
		"pagebatch_limiter_wait_seconds",
		"pagebatch_limiter_retries_total",
		"pagebatch_limiter_daily_requests",
		"pagebatch_items_total",
		"pagebatch_session_duration_seconds",
		"pagebatch_session_active",
		"pagebatch_cache_misses_total",
	} {
		if !got[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), "pagebatch_limiter_queue_length") {
		t.Error("handler output should include limiter metrics")
	}
}
