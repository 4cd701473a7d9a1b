package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "commsledger",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent ledger write.",
	})
	activityBroadcastGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "commsledger",
		Subsystem: "persistence",
		Name:      "last_activity_broadcast_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful realtime broadcast.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, activityBroadcastGauge)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordActivityBroadcast updates the broadcast watermark gauge.
func RecordActivityBroadcast(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityBroadcastGauge.Set(float64(ts.Unix()))
}
