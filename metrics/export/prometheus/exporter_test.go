package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	authkit "github.com/loopchat/authkit"
)

type stubSource struct {
	snapshot authkit.MetricsSnapshot
}

func (s *stubSource) MetricsSnapshot() authkit.MetricsSnapshot {
	return s.snapshot
}

func fixtureSnapshot() authkit.MetricsSnapshot {
	return authkit.MetricsSnapshot{
		Counters: map[authkit.MetricID]uint64{
			authkit.MetricSignInSuccess:  3,
			authkit.MetricRefreshSuccess: 7,
		},
		Histograms: map[authkit.MetricID][]uint64{
			// One observation per bucket.
			authkit.MetricRequestLatency: {1, 1, 1, 1, 1, 1, 1, 1},
		},
	}
}

func scrape(t *testing.T, e *Exporter) string {
	t.Helper()
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading exposition: %v", err)
	}
	return string(body)
}

func TestExporterCounterExposition(t *testing.T) {
	e := NewExporter(&stubSource{snapshot: fixtureSnapshot()})
	body := scrape(t, e)

	for _, line := range []string{
		"authkit_sign_in_success_total 3",
		"authkit_refresh_success_total 7",
		"authkit_sign_out_total 0",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("exposition missing %q:\n%s", line, body)
		}
	}
}

func TestExporterHistogramExposition(t *testing.T) {
	e := NewExporter(&stubSource{snapshot: fixtureSnapshot()})
	body := scrape(t, e)

	for _, line := range []string{
		`authkit_request_latency_seconds_bucket{le="0.005"} 1`,
		`authkit_request_latency_seconds_bucket{le="0.5"} 7`,
		`authkit_request_latency_seconds_bucket{le="+Inf"} 8`,
		"authkit_request_latency_seconds_count 8",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("exposition missing %q:\n%s", line, body)
		}
	}
}

func TestExporterEmptySnapshot(t *testing.T) {
	e := NewExporter(&stubSource{snapshot: authkit.MetricsSnapshot{
		Counters:   map[authkit.MetricID]uint64{},
		Histograms: map[authkit.MetricID][]uint64{},
	}})
	body := scrape(t, e)

	if !strings.Contains(body, "authkit_sign_in_success_total 0") {
		t.Fatalf("missing zero counter:\n%s", body)
	}
	if !strings.Contains(body, `authkit_request_latency_seconds_bucket{le="+Inf"} 0`) {
		t.Fatalf("missing empty histogram:\n%s", body)
	}
}
