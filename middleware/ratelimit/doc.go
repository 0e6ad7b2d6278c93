// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (token bucket, janela fixa, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Na API:
//
//   1) Middleware: token bucket por IP em todo /api (429)
//   2) ConcurrencyMiddleware: vagas para rotas que chamam upstreams de IA (503)
//   3) WindowMiddleware: janela fixa de 15 minutos no formulário simples (429)
//
// Bloqueios respondem JSON {"error": "..."} como o resto da API.
package ratelimit
