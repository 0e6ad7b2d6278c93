// Package store contém as implementações de forms.Store:
//
//   - Memory: go-cache com retenção; usado pelo formulário simples e em dev
//   - Redis: JSON por submissão + índices ZSET por data
//   - KV: Cloudflare Workers KV
//   - Cosmos: Azure Cosmos DB, partição por tipo de formulário
package store
