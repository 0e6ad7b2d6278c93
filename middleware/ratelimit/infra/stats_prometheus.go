package infra

import (
	"context"
	"errors"
	"strconv"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe as decisões como contador. Key e Path ficam de fora
// dos labels por causa da cardinalidade.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStats(reg prometheus.Registerer) *PrometheusStats {
	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tekimax",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by scope and outcome.",
		},
		[]string{"scope", "allowed"},
	)
	if reg != nil {
		reg.MustRegister(decisions)
	}
	return &PrometheusStats{decisions: decisions}
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.decisions.WithLabelValues(scopeOf(ev), strconv.FormatBool(ev.Allowed)).Inc()
	return nil
}

// MultiStats repassa o evento para vários stores; erros são agregados.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
