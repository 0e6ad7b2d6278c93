package store

import (
	"fmt"

	"github.com/tekimax/tekimax-api/config"
	"github.com/tekimax/tekimax-api/forms"

	"github.com/redis/go-redis/v9"
)

// Open devolve o store durável escolhido por FORM_STORE. rdb pode ser nil
// quando o backend não é redis.
func Open(cfg config.FormsConfig, rdb *redis.Client) (forms.Store, error) {
	switch cfg.Store {
	case config.FormStoreMemory, "":
		return NewMemory(DefaultMemoryRetention), nil
	case config.FormStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("form store redis: no redis client")
		}
		return NewRedis(rdb, "forms"), nil
	case config.FormStoreKV:
		return NewKV(cfg.CloudflareAPIToken, cfg.CloudflareAccountID, cfg.CloudflareNamespaceID)
	case config.FormStoreCosmos:
		return NewCosmos(cfg.CosmosEndpoint, cfg.CosmosKey, cfg.CosmosDatabase, cfg.CosmosContainer)
	default:
		return nil, fmt.Errorf("unknown form store %q", cfg.Store)
	}
}
