package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricMirrorClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "respview",
		Name:      "mirror_clients",
		Help:      "Connected mirror UI channels.",
	})
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "respview",
		Name:      "launcher_sessions_created_total",
		Help:      "Sessions created through the launcher API.",
	})
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
