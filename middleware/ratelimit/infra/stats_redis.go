package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava as decisões em hashes, compartilhados entre réplicas:
//
//	<prefix>:scopes                  set com os escopos já vistos
//	<prefix>:<scope>:total           allowed/denied cumulativos, sem TTL
//	<prefix>:<scope>:minute:<yyyymmddhhmm>
//	<prefix>:<scope>:route           "<METHOD> <path>:<allowed|denied>"
//	<prefix>:<scope>:key:<key>       só com WithStatsTrackKeys
type RedisStatsStore struct {
	rdb    *redis.Client
	prefix string
	// ttl dos buckets por minuto e por chave
	ttl       time.Duration
	perMinute bool
	trackKeys bool
}

var (
	_ domain.StatsStore  = (*RedisStatsStore)(nil)
	_ domain.StatsReader = (*RedisStatsStore)(nil)
)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket aceita "minute" (padrão) ou "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.perMinute = strings.ToLower(strings.TrimSpace(bucket)) != "none"
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		prefix:    "ratelimit:stats",
		ttl:       24 * time.Hour,
		perMinute: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := outcome(ev.Allowed)
	scope := scopeOf(ev)
	base := s.prefix + ":" + scope

	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, s.prefix+":scopes", scope)
	pipe.HIncrBy(ctx, base+":total", field, 1)

	if s.perMinute {
		s.expiring(ctx, pipe, fmt.Sprintf("%s:minute:%s", base, at.UTC().Format("200601021504")), field)
	}
	if route := routeOf(ev); route != "" {
		pipe.HIncrBy(ctx, base+":route", route+":"+field, 1)
	}
	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		s.expiring(ctx, pipe, base+":key:"+k, field)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) expiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Totals lê <prefix>:<scope>:total de todos os escopos registrados.
func (s *RedisStatsStore) Totals(ctx context.Context) (map[string]domain.Counters, error) {
	scopes, err := s.rdb.SMembers(ctx, s.prefix+":scopes").Result()
	if err != nil {
		return nil, err
	}

	pipe := s.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(scopes))
	for _, scope := range scopes {
		cmds[scope] = pipe.HGetAll(ctx, s.prefix+":"+scope+":total")
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	out := make(map[string]domain.Counters, len(cmds))
	for scope, cmd := range cmds {
		h := cmd.Val()
		allowed, _ := strconv.ParseInt(h["allowed"], 10, 64)
		denied, _ := strconv.ParseInt(h["denied"], 10, 64)
		out[scope] = domain.Counters{Allowed: allowed, Denied: denied}
	}
	return out, nil
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func scopeOf(ev domain.StatsEvent) string {
	if s := strings.TrimSpace(ev.Scope); s != "" {
		return s
	}
	return "default"
}

func routeOf(ev domain.StatsEvent) string {
	return strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
}
