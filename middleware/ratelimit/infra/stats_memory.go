package infra

import (
	"context"
	"maps"
	"sync"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
)

// MemoryStatsStore guarda totais por escopo e por rota no próprio processo.
// É o destino quando não há Redis; zera a cada restart.
//
// Chaves de cliente não são guardadas: o número de IPs distintos não tem teto.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   domain.Counters
	byScope map[string]domain.Counters
	byRoute map[string]domain.Counters
}

var (
	_ domain.StatsStore  = (*MemoryStatsStore)(nil)
	_ domain.StatsReader = (*MemoryStatsStore)(nil)
)

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byScope: make(map[string]domain.Counters),
		byRoute: make(map[string]domain.Counters),
	}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.Add(ev.Allowed)
	bump(s.byScope, scopeOf(ev), ev.Allowed)
	if route := routeOf(ev); route != "" {
		bump(s.byRoute, route, ev.Allowed)
	}
	return nil
}

func bump(m map[string]domain.Counters, k string, allowed bool) {
	c := m[k]
	c.Add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Totals implementa domain.StatsReader.
func (s *MemoryStatsStore) Totals(context.Context) (map[string]domain.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byScope), nil
}

func (s *MemoryStatsStore) ByRoute() map[string]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}
