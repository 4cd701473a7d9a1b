package ingest

import "github.com/prometheus/client_golang/prometheus"

var eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "commsledger",
	Subsystem: "ingest",
	Name:      "events_total",
	Help:      "Number of provider events processed, labeled by channel and outcome.",
}, []string{"channel", "outcome"})

func init() {
	prometheus.MustRegister(eventsCounter)
}
