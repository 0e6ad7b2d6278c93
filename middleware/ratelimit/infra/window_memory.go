package infra

import (
	"context"
	"sync"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryWindow é a janela fixa em memória do processo.
//
// Cada chave vive no go-cache com expiração igual à janela, então o janitor
// do próprio cache remove chaves inativas. O mutex garante que
// "lê-incrementa-grava" seja atômico entre requisições concorrentes.
type MemoryWindow struct {
	mu      sync.Mutex
	entries *gocache.Cache
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

type MemoryWindowOption func(*MemoryWindow)

func WithWindowClock(now func() time.Time) MemoryWindowOption {
	return func(w *MemoryWindow) { w.now = now }
}

func NewMemoryWindow(limit int, window time.Duration, opts ...MemoryWindowOption) *MemoryWindow {
	w := &MemoryWindow{
		entries: gocache.New(window, window),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *MemoryWindow) Limit() int             { return w.limit }
func (w *MemoryWindow) Window() time.Duration { return w.window }

// Hit implementa domain.WindowCounter.
func (w *MemoryWindow) Hit(_ context.Context, key domain.Key) (domain.WindowResult, error) {
	now := w.now()
	k := string(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	if v, ok := w.entries.Get(k); ok {
		ent := v.(*windowEntry)
		if now.Before(ent.resetAt) {
			ent.count++
			return domain.WindowResult{Count: ent.count, Limit: w.limit, ResetAt: ent.resetAt}, nil
		}
	}

	ent := &windowEntry{count: 1, resetAt: now.Add(w.window)}
	w.entries.Set(k, ent, w.window)
	return domain.WindowResult{Count: 1, Limit: w.limit, ResetAt: ent.resetAt}, nil
}

// Keys retorna quantas chaves ainda estão em alguma janela.
func (w *MemoryWindow) Keys() int {
	return w.entries.ItemCount()
}
