package infra

import (
	"context"
	"sync"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store guarda um token bucket (x/time/rate) por cliente da API.
// Buckets sem uso por idleTTL são descartados pelo janitor; o cliente que
// voltar depois disso recomeça com o burst cheio.
type Store struct {
	mu      sync.Mutex
	buckets map[string]*storeEntry
	limit   rate.Limit
	burst   int
	now     func() time.Time

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	b        *bucket
	lastSeen time.Time
}

// bucket adapta *rate.Limiter para domain.Limiter.
type bucket struct {
	lim *rate.Limiter
}

// Take reserva um token; se a reserva exigir espera ela é cancelada para
// não consumir o token de quem vier depois.
func (b *bucket) Take(now time.Time) (bool, time.Duration) {
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	d := r.DelayFrom(now)
	if d == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, d
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

// WithCleanupEvery define o intervalo do janitor; <= 0 desliga.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithStoreClock troca o relógio usado para lastSeen e para a limpeza.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		buckets:      make(map[string]*storeEntry),
		limit:        rate.Limit(rps),
		burst:        burst,
		now:          time.Now,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleTTL <= 0 {
		s.idleTTL = 15 * time.Minute
	}
	return s
}

func (s *Store) RPS() float64 { return float64(s.limit) }
func (s *Store) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.lookup(string(key))
}

func (s *Store) lookup(key string) *bucket {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.buckets[key]
	if !ok {
		ent = &storeEntry{b: &bucket{lim: rate.NewLimiter(s.limit, s.burst)}}
		s.buckets[key] = ent
	}
	ent.lastSeen = now
	return ent.b
}

// Len é o número de clientes com bucket em memória.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Cleanup descarta buckets ociosos e devolve quantos saíram.
func (s *Store) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.buckets {
		if ent.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed
}

// StartJanitor roda Cleanup a cada cleanupEvery até o ctx encerrar.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
