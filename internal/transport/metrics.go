package transport

import "github.com/prometheus/client_golang/prometheus"

type metricsCollector struct {
	interceptor *Interceptor

	requestsDesc        *prometheus.Desc
	unauthorizedDesc    *prometheus.Desc
	refreshesDesc       *prometheus.Desc
	refreshFailuresDesc *prometheus.Desc
	retriesDesc         *prometheus.Desc
	coalescedDesc       *prometheus.Desc
	lastRefreshDesc     *prometheus.Desc
}

// NewMetricsCollector exposes the interceptor's counters to Prometheus.
func NewMetricsCollector(i *Interceptor) prometheus.Collector {
	return &metricsCollector{
		interceptor: i,
		requestsDesc: prometheus.NewDesc(
			"console_http_requests_total",
			"Total number of requests sent through the interceptor.",
			nil, nil,
		),
		unauthorizedDesc: prometheus.NewDesc(
			"console_http_unauthorized_total",
			"Total number of 401 responses eligible for refresh.",
			nil, nil,
		),
		refreshesDesc: prometheus.NewDesc(
			"console_token_refreshes_total",
			"Total number of refresh calls made.",
			nil, nil,
		),
		refreshFailuresDesc: prometheus.NewDesc(
			"console_token_refresh_failures_total",
			"Total number of refresh failures that ended the session.",
			nil, nil,
		),
		retriesDesc: prometheus.NewDesc(
			"console_http_retries_total",
			"Total number of requests resent after a successful refresh.",
			nil, nil,
		),
		coalescedDesc: prometheus.NewDesc(
			"console_token_refresh_coalesced_total",
			"Total number of requests that joined another request's refresh.",
			nil, nil,
		),
		lastRefreshDesc: prometheus.NewDesc(
			"console_token_last_refresh_timestamp",
			"Unix timestamp of the last successful refresh.",
			nil, nil,
		),
	}
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsDesc
	ch <- c.unauthorizedDesc
	ch <- c.refreshesDesc
	ch <- c.refreshFailuresDesc
	ch <- c.retriesDesc
	ch <- c.coalescedDesc
	ch <- c.lastRefreshDesc
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.interceptor == nil {
		return
	}
	s := c.interceptor.StatsSnapshot()
	ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.CounterValue, float64(s.Requests))
	ch <- prometheus.MustNewConstMetric(c.unauthorizedDesc, prometheus.CounterValue, float64(s.Unauthorized))
	ch <- prometheus.MustNewConstMetric(c.refreshesDesc, prometheus.CounterValue, float64(s.Refreshes))
	ch <- prometheus.MustNewConstMetric(c.refreshFailuresDesc, prometheus.CounterValue, float64(s.RefreshFailures))
	ch <- prometheus.MustNewConstMetric(c.retriesDesc, prometheus.CounterValue, float64(s.Retries))
	ch <- prometheus.MustNewConstMetric(c.coalescedDesc, prometheus.CounterValue, float64(s.Coalesced))
	if s.LastRefreshAt != nil {
		ch <- prometheus.MustNewConstMetric(c.lastRefreshDesc, prometheus.GaugeValue, float64(s.LastRefreshAt.Unix()))
	}
}
