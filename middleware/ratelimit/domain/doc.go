// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Há dois modelos de limite: token bucket (Limiter/LimiterStore), usado no
// tráfego geral da API, e janela fixa (WindowCounter), usado nos formulários.
package domain
