// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - Store: token bucket por chave usando golang.org/x/time/rate
//   - MemoryWindow / RedisWindow: janela fixa (go-cache ou INCR+PEXPIRE no Redis)
//   - ChanPool: semáforo simples para limite de concorrência
//   - Memory/Redis/PrometheusStats: destino das estatísticas de decisão;
//     Memory e Redis também devolvem os totais por escopo (StatsReader)
package infra
