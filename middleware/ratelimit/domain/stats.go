package domain

import (
	"context"
	"time"
)

const (
	ScopeAPI  = "api"
	ScopeForm = "form"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Scope separa os limitadores: ScopeAPI para o token bucket global e
// ScopeForm para a janela fixa dos formulários.
//
// Observação: cuidado com cardinalidade (Key/Path sem controle podem
// explodir o número de séries/chaves no Redis ou no Prometheus).
type StatsEvent struct {
	Scope   string
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters soma as decisões de um escopo.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) Add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// StatsReader devolve os totais cumulativos indexados por escopo.
type StatsReader interface {
	Totals(ctx context.Context) (map[string]Counters, error)
}
