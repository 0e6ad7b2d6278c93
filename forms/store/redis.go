package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tekimax/tekimax-api/forms"

	"github.com/redis/go-redis/v9"
)

// Redis grava cada submissão em <prefix>:submission:<id> e indexa em dois
// ZSETs por created-at (ms): <prefix>:submissions e <prefix>:submissions:<type>.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "forms"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) itemKey(id string) string { return r.prefix + ":submission:" + id }

func (r *Redis) indexKey(t forms.Type) string {
	if t == "" {
		return r.prefix + ":submissions"
	}
	return r.prefix + ":submissions:" + string(t)
}

func (r *Redis) Save(ctx context.Context, s forms.Submission) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	score := float64(s.CreatedAt.UnixMilli())

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.itemKey(s.ID), doc, 0)
	pipe.ZAdd(ctx, r.indexKey(""), redis.Z{Score: score, Member: s.ID})
	pipe.ZAdd(ctx, r.indexKey(s.Type), redis.Z{Score: score, Member: s.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: redis save: %v", forms.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, f forms.Filter) ([]forms.Submission, error) {
	f = f.Normalize()

	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(f.Type), 0, int64(f.Limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis index: %v", forms.ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return []forms.Submission{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis mget: %v", forms.ErrStoreUnavailable, err)
	}

	out := make([]forms.Submission, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// índice aponta para item removido
			continue
		}
		var s forms.Submission
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
