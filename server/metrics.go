package server

import "github.com/prometheus/client_golang/prometheus"

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "msgd_connections_active",
		Help: "Current number of open client connections",
	})
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "msgd_requests_total",
		Help: "Total requests processed, by command",
	}, []string{"command"})
	errorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "msgd_error_responses_total",
		Help: "Total ERROR responses written",
	})
)

func init() {
	prometheus.MustRegister(activeConnections, requestsTotal, errorsTotal)
}
