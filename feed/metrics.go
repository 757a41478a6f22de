package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var feedPagesServed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feed_pages_served",
	Help: "The total number of feed pages assembled",
}, []string{"scope", "sort"})

var boostDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feed_boost_degradations",
	Help: "The number of feed pages served organic-only because the boost fetch failed",
}, []string{"scope"})

var feedAssembleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "feed_assemble_duration",
	Help:    "A histogram of feed page assembly latencies",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
}, []string{"scope"})
