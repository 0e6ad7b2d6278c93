package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Limiter consome um token em now. Sem token, devolve a espera até o
// próximo (0 quando não há previsão, ex.: burst zero).
//
// A implementação de token bucket usa golang.org/x/time/rate; a de janela fixa
// fica em WindowCounter.
type Limiter interface {
	Take(now time.Time) (ok bool, wait time.Duration)
}

// LimiterStore obtém um limiter por chave (IP, header de cliente).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Limit e Remaining só são preenchidos pela janela fixa.
	Limit     int
	Remaining int
}
