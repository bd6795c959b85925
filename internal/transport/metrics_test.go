package transport

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherNames(t *testing.T, c prometheus.Collector) map[string]float64 {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			out[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			out[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	return out
}

func TestMetricsCollector(t *testing.T) {
	h := newHarness(t, false, nil)
	c := NewMetricsCollector(h.ic)

	before := gatherNames(t, c)
	if _, ok := before["console_token_last_refresh_timestamp"]; ok {
		t.Error("last refresh timestamp reported before any refresh")
	}
	if before["console_http_requests_total"] != 0 {
		t.Errorf("requests before traffic = %v", before["console_http_requests_total"])
	}

	h.store.SetTokens("expired-access", "valid-refresh")
	resp, err := h.get(context.Background())
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close() //nolint:errcheck // Test cleanup

	after := gatherNames(t, c)
	checks := map[string]float64{
		"console_http_requests_total":          1,
		"console_http_unauthorized_total":      1,
		"console_token_refreshes_total":        1,
		"console_token_refresh_failures_total": 0,
		"console_http_retries_total":           1,
	}
	for name, want := range checks {
		if after[name] != want {
			t.Errorf("%s = %v, want %v", name, after[name], want)
		}
	}
	if after["console_token_last_refresh_timestamp"] == 0 {
		t.Error("last refresh timestamp missing after refresh")
	}
}
