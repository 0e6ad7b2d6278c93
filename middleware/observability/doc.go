// Package observability reúne os middlewares transversais da API: request ID e
// log por requisição (zerolog), métricas HTTP (Prometheus), recuperação de
// panic e CORS.
package observability
