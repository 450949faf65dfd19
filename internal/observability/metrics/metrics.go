// Package metrics expone los contadores Prometheus del servicio de recetas.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa todos los contadores de la aplicación.
type Metrics struct {
	PrescriptionsCreated prometheus.Counter
	PrescriptionsDeleted prometheus.Counter
	BulkImported         prometheus.Counter
	BulkFailed           prometheus.Counter

	// FallbackActivations cuenta, por operación, cuántas veces el
	// cliente degradó al almacenamiento local.
	FallbackActivations *prometheus.CounterVec
}

// New crea y registra los contadores en el registry por defecto.
func New() *Metrics {
	m := &Metrics{
		PrescriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_created_total",
			Help: "Total prescriptions created",
		}),
		PrescriptionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_deleted_total",
			Help: "Total prescriptions deleted",
		}),
		BulkImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_bulk_imported_total",
			Help: "Total prescriptions imported via bulk endpoint",
		}),
		BulkFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_bulk_failed_total",
			Help: "Total records rejected during bulk import",
		}),
		FallbackActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fallback_activations_total",
			Help: "Times the client degraded to the local store",
		}, []string{"operation"}),
	}

	prometheus.MustRegister(
		m.PrescriptionsCreated,
		m.PrescriptionsDeleted,
		m.BulkImported,
		m.BulkFailed,
		m.FallbackActivations,
	)

	return m
}

// Handler devuelve el handler HTTP de Prometheus para /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
