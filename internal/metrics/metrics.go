package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "siteops"

const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
)

// Recorder holds the service collectors. A nil *Recorder records nothing.
type Recorder struct {
	importRows  *prometheus.CounterVec
	assignments *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

// NewRecorder registers the collectors on reg. A fresh registry is used
// when reg is nil.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		importRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Spreadsheet rows processed by bulk import, by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		assignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Assignment creation attempts by outcome.",
		}, []string{"outcome"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_resolutions_total",
			Help:      "Reference resolutions by kind and whether a row was created.",
		}, []string{"kind", "outcome"}),
		gatherer: reg,
	}
}

func (r *Recorder) ImportRow(dataset, outcome string) {
	if r == nil {
		return
	}
	r.importRows.WithLabelValues(dataset, outcome).Inc()
}

func (r *Recorder) Assignment(outcome string) {
	if r == nil {
		return
	}
	r.assignments.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Resolution(kind string, created bool) {
	if r == nil {
		return
	}
	outcome := "hit"
	if created {
		outcome = OutcomeCreated
	}
	r.resolutions.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
