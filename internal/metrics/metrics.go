// Package metrics provides Prometheus instrumentation for the playlist daemon.
//
// All metrics are prefixed with "plsd_". They are registered on the default registry through promauto and exposed
// through [Handler] when the daemon is configured with a metrics address.
//
// # Metrics
//
//   - PlaylistsLoaded: gauge of playlists currently held by the daemon
//   - SavesTotal: counter of playlist saves by status (ok/error)
//   - SignalsTotal: counter of emitted signals by name
//   - ImportsTotal: counter of finished imports by status (ok/error/cancelled)
//   - CallsTotal: counter of service calls by method and status
//   - PeersTracked: gauge of bus peers holding use counts
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PlaylistsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plsd_playlists_loaded",
			Help: "Number of playlists held by the daemon",
		},
	)

	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plsd_saves_total",
			Help: "Total number of playlist saves",
		},
		[]string{"status"},
	)

	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plsd_signals_total",
			Help: "Total number of emitted signals",
		},
		[]string{"signal"},
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plsd_imports_total",
			Help: "Total number of finished imports",
		},
		[]string{"status"},
	)

	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plsd_calls_total",
			Help: "Total number of service calls",
		},
		[]string{"method", "status"},
	)

	PeersTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plsd_peers_tracked",
			Help: "Number of bus peers holding playlist use counts",
		},
	)
)

// Status label values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
