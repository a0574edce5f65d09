package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are optional; a nil *Metrics records nothing.
type Metrics struct {
	Intents     *prometheus.CounterVec
	Submissions *prometheus.CounterVec
	Frames      *prometheus.CounterVec
	Pending     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kanban_engine_intents_total",
			Help: "Intents dispatched to the engine by kind and write path",
		}, []string{"kind", "path"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kanban_engine_submissions_total",
			Help: "Board submissions to the authority by result",
		}, []string{"result"}),
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kanban_engine_frames_total",
			Help: "Inbound authoritative boards (responses and push frames) by merge result",
		}, []string{"result"}),
		Pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "kanban_engine_pending_submissions",
			Help: "Submissions awaiting an authority response",
		}),
	}
}

func (m *Metrics) intent(kind, path string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(kind, path).Inc()
}

func (m *Metrics) submission(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) frame(result string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(result).Inc()
}

func (m *Metrics) pending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}
