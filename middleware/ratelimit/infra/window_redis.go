package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// windowScript incrementa o contador e abre a janela no primeiro hit.
// Se a chave ficou sem TTL (ex.: alguém gravou sem expirar), a janela é reaberta.
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisWindow é a janela fixa compartilhada entre instâncias.
type RedisWindow struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

type RedisWindowOption func(*RedisWindow)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(w *RedisWindow) { w.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindow(rdb *redis.Client, limit int, window time.Duration, opts ...RedisWindowOption) *RedisWindow {
	w := &RedisWindow{
		rdb:    rdb,
		prefix: "ratelimit:window",
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *RedisWindow) Limit() int             { return w.limit }
func (w *RedisWindow) Window() time.Duration { return w.window }

// Hit implementa domain.WindowCounter.
func (w *RedisWindow) Hit(ctx context.Context, key domain.Key) (domain.WindowResult, error) {
	k := w.prefix + ":" + string(key)

	vals, err := windowScript.Run(ctx, w.rdb, []string{k}, w.window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.WindowResult{}, fmt.Errorf("window hit %q: %w", k, err)
	}
	if len(vals) != 2 {
		return domain.WindowResult{}, fmt.Errorf("window hit %q: unexpected reply %v", k, vals)
	}

	return domain.WindowResult{
		Count:   int(vals[0]),
		Limit:   w.limit,
		ResetAt: time.Now().Add(time.Duration(vals[1]) * time.Millisecond),
	}, nil
}
