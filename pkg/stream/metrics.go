package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_stream_clients",
		Help: "Number of connected stream subscribers",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hyperdrive_stream_events_published_total",
		Help: "Total number of events published to the stream",
	}, []string{"type"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperdrive_stream_events_dropped_total",
		Help: "Total number of events dropped due to slow subscribers",
	})
)
