package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK             = "ok"
	outcomeHTTPError      = "http_error"
	outcomeTransportError = "transport_error"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "unicorns",
	Subsystem: "remote",
	Name:      "requests_total",
	Help:      "Requests sent to the CRUD backend, by operation and outcome.",
}, []string{"op", "outcome"})

func observe(op, outcome string) {
	requestsTotal.WithLabelValues(op, outcome).Inc()
}
