package broadcast

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commsledger",
		Subsystem: "broadcast",
		Name:      "events_published_total",
		Help:      "Number of activity events published to the realtime channel, labeled by event name.",
	}, []string{"event"})

	publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "commsledger",
		Subsystem: "broadcast",
		Name:      "publish_failures_total",
		Help:      "Number of realtime publish attempts that failed.",
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, publishFailures)
}
