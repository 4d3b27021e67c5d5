package observability

import (
	"context"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine activity.
type Metrics struct {
	ModelLoads      *prometheus.CounterVec
	TreeNodes       prometheus.Gauge
	Classifications *prometheus.CounterVec
	ClassifyLatency prometheus.Histogram
	Ambiguities     prometheus.Counter
	Reveals         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ModelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sapling_model_loads_total",
				Help: "Model load attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		TreeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sapling_tree_nodes",
			Help: "Number of nodes in the current tree",
		}),
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sapling_classifications_total",
				Help: "Classifications by predicted label",
			},
			[]string{"label"},
		),
		ClassifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sapling_classify_duration_seconds",
			Help:    "Duration of classifier calls",
			Buckets: prometheus.DefBuckets,
		}),
		Ambiguities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sapling_ambiguous_path_matches_total",
			Help: "Trace steps that matched more than one split",
		}),
		Reveals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sapling_reveals_total",
				Help: "Reveal runs by kind and how they ended",
			},
			[]string{"kind", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.ModelLoads, m.TreeNodes, m.Classifications, m.ClassifyLatency, m.Ambiguities, m.Reveals,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnModelLoad: func(_ context.Context, e *domain.ModelEvent) {
			if e.Type == domain.EventModelRejected {
				m.ModelLoads.WithLabelValues(e.Source, "rejected").Inc()
				return
			}
			m.ModelLoads.WithLabelValues(e.Source, "loaded").Inc()
			m.TreeNodes.Set(float64(e.Nodes))
		},
		OnClassify: func(_ context.Context, e *domain.ClassifyEvent) {
			m.Classifications.WithLabelValues(e.Label).Inc()
			m.ClassifyLatency.Observe(e.Duration.Seconds())
			m.Ambiguities.Add(float64(e.Ambiguities))
		},
		OnReveal: func(_ context.Context, e *domain.RevealEvent) {
			switch {
			case e.Cancelled:
				m.Reveals.WithLabelValues(string(e.Kind), "cancelled").Inc()
			case e.Phase == domain.PhaseComplete:
				m.Reveals.WithLabelValues(string(e.Kind), "completed").Inc()
			}
		},
	}
}

// Chain combines hooks so each event reaches every non-nil callback in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnModelLoad: func(ctx context.Context, e *domain.ModelEvent) {
			for _, h := range hooks {
				if h.OnModelLoad != nil {
					h.OnModelLoad(ctx, e)
				}
			}
		},
		OnClassify: func(ctx context.Context, e *domain.ClassifyEvent) {
			for _, h := range hooks {
				if h.OnClassify != nil {
					h.OnClassify(ctx, e)
				}
			}
		},
		OnReveal: func(ctx context.Context, e *domain.RevealEvent) {
			for _, h := range hooks {
				if h.OnReveal != nil {
					h.OnReveal(ctx, e)
				}
			}
		},
	}
}
