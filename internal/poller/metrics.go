package poller

import "github.com/prometheus/client_golang/prometheus"

var (
	pollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habanero_viewer_poll_ticks_total",
			Help: "Poll ticks started, by display mode",
		},
		[]string{"mode"},
	)

	pollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habanero_viewer_poll_failures_total",
			Help: "Poll ticks whose fetch failed, by display mode",
		},
		[]string{"mode"},
	)

	pollPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habanero_viewer_poll_published_total",
			Help: "Series published to subscribers, by display mode",
		},
		[]string{"mode"},
	)

	pollDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "habanero_viewer_poll_discarded_total",
			Help: "Responses dropped because their polling context was superseded or a newer tick already published",
		},
	)

	activeContexts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "habanero_viewer_poll_active_contexts",
			Help: "Polling contexts currently running across all views",
		},
	)

	lastPublishTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "habanero_viewer_poll_last_publish_timestamp_seconds",
			Help: "Unix timestamp of the last published series",
		},
	)
)

func init() {
	prometheus.MustRegister(pollTicks, pollFailures, pollPublished, pollDiscarded, activeContexts, lastPublishTimestamp)
}
