package vrm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrmsnap_fetch_attempts_total",
		Help: "HTTP GET attempts issued against the VRM API.",
	})
	fetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrmsnap_fetch_retries_total",
		Help: "Attempts that failed with a transient error and were retried.",
	})
	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrmsnap_fetch_failures_total",
		Help: "Requests that failed for good, by failure kind.",
	}, []string{"kind"})
)
