package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/graylogic/admin-console/internal/auth"
)

type sessionMetricsCollector struct {
	agent *Agent

	authenticatedDesc  *prometheus.Desc
	degradedDesc       *prometheus.Desc
	tokenExpiryDesc    *prometheus.Desc
	profileRefreshDesc *prometheus.Desc
	lastProfileDesc    *prometheus.Desc
	commandsDesc       *prometheus.Desc
}

func newSessionMetricsCollector(a *Agent) prometheus.Collector {
	return &sessionMetricsCollector{
		agent: a,
		authenticatedDesc: prometheus.NewDesc(
			"console_session_authenticated",
			"1 when the session holds an access token.",
			nil, nil,
		),
		degradedDesc: prometheus.NewDesc(
			"console_session_storage_degraded",
			"1 when durable session storage failed and the store runs memory-only.",
			nil, nil,
		),
		tokenExpiryDesc: prometheus.NewDesc(
			"console_access_token_expiry_timestamp",
			"Unix timestamp at which the current access token expires.",
			nil, nil,
		),
		profileRefreshDesc: prometheus.NewDesc(
			"console_profile_refreshes_total",
			"Total number of scheduled profile refreshes by outcome.",
			[]string{"outcome"},
			nil,
		),
		lastProfileDesc: prometheus.NewDesc(
			"console_profile_last_refresh_timestamp",
			"Unix timestamp of the last successful profile refresh.",
			nil, nil,
		),
		commandsDesc: prometheus.NewDesc(
			"console_agent_commands_total",
			"Total number of operator commands received.",
			nil, nil,
		),
	}
}

func (c *sessionMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.authenticatedDesc
	ch <- c.degradedDesc
	ch <- c.tokenExpiryDesc
	ch <- c.profileRefreshDesc
	ch <- c.lastProfileDesc
	ch <- c.commandsDesc
}

func (c *sessionMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.agent == nil {
		return
	}
	snap := c.agent.store.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.authenticatedDesc, prometheus.GaugeValue, boolValue(snap.IsAuthenticated))
	ch <- prometheus.MustNewConstMetric(c.degradedDesc, prometheus.GaugeValue, boolValue(c.agent.store.Degraded()))

	if snap.AccessToken != "" {
		if info, err := auth.InspectToken(snap.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.tokenExpiryDesc, prometheus.GaugeValue, float64(info.ExpiresAt.Unix()))
		}
	}

	s := c.agent.StatsSnapshot()
	ch <- prometheus.MustNewConstMetric(c.profileRefreshDesc, prometheus.CounterValue, float64(s.ProfileRefreshes), "success")
	ch <- prometheus.MustNewConstMetric(c.profileRefreshDesc, prometheus.CounterValue, float64(s.ProfileFailures), "failure")
	ch <- prometheus.MustNewConstMetric(c.profileRefreshDesc, prometheus.CounterValue, float64(s.ProfileSkipped), "skipped")
	if s.LastProfileAt != nil {
		ch <- prometheus.MustNewConstMetric(c.lastProfileDesc, prometheus.GaugeValue, float64(s.LastProfileAt.UTC().Unix()))
	}
	ch <- prometheus.MustNewConstMetric(c.commandsDesc, prometheus.CounterValue, float64(s.Commands))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var processStartedAt = time.Now().UTC()
