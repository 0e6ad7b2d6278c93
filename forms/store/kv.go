package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tekimax/tekimax-api/forms"

	"github.com/cloudflare/cloudflare-go"
)

const (
	kvPrefix   = "submission:"
	// escopo que recebe todas as submissões, independente do tipo
	kvAllScope = "all"
)

// kvAPI é o subconjunto de *cloudflare.API usado aqui.
type kvAPI interface {
	WriteWorkersKVEntry(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.WriteWorkersKVEntryParams) (cloudflare.Response, error)
	GetWorkersKV(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.GetWorkersKVParams) ([]byte, error)
	ListWorkersKVKeys(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListWorkersKVsParams) (cloudflare.ListStorageKeysResponse, error)
}

// KV persiste no Cloudflare Workers KV. Cada submissão é gravada duas vezes:
//
//	submission:<type>:<rev>:<id>
//	submission:all:<rev>:<id>
//
// rev = MaxInt64 - UnixNano com 19 dígitos, então a ordem lexicográfica
// do List do KV já é "mais recente primeiro" e List para ao juntar Limit.
type KV struct {
	api       kvAPI
	account   *cloudflare.ResourceContainer
	namespace string

	// teto de chaves varridas por List
	maxScan int
}

func NewKV(apiToken, accountID, namespaceID string) (*KV, error) {
	api, err := cloudflare.NewWithAPIToken(apiToken)
	if err != nil {
		return nil, fmt.Errorf("cloudflare client: %w", err)
	}
	return newKV(api, accountID, namespaceID), nil
}

func newKV(api kvAPI, accountID, namespaceID string) *KV {
	return &KV{
		api:       api,
		account:   cloudflare.AccountIdentifier(accountID),
		namespace: namespaceID,
		maxScan:   5000,
	}
}

func reverseStamp(t time.Time) string {
	return fmt.Sprintf("%019d", math.MaxInt64-t.UnixNano())
}

func kvKey(scope string, s forms.Submission) string {
	return kvPrefix + scope + ":" + reverseStamp(s.CreatedAt) + ":" + s.ID
}

// parseKVKey devolve o instante embutido na chave.
func parseKVKey(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, kvPrefix)
	if !ok {
		return time.Time{}, false
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 || len(parts[1]) != 19 || parts[2] == "" {
		return time.Time{}, false
	}
	rev, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || rev < 0 {
		return time.Time{}, false
	}
	return time.Unix(0, math.MaxInt64-rev).UTC(), true
}

func (k *KV) Save(ctx context.Context, s forms.Submission) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	for _, scope := range []string{string(s.Type), kvAllScope} {
		_, err = k.api.WriteWorkersKVEntry(ctx, k.account, cloudflare.WriteWorkersKVEntryParams{
			NamespaceID: k.namespace,
			Key:         kvKey(scope, s),
			Value:       doc,
		})
		if err != nil {
			return fmt.Errorf("%w: kv write: %v", forms.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (k *KV) List(ctx context.Context, f forms.Filter) ([]forms.Submission, error) {
	f = f.Normalize()

	scope := kvAllScope
	if f.Type != "" {
		scope = string(f.Type)
	}
	prefix := kvPrefix + scope + ":"

	out := make([]forms.Submission, 0, f.Limit)
	scanned := 0
	cursor := ""
	for len(out) < f.Limit && scanned < k.maxScan {
		resp, err := k.api.ListWorkersKVKeys(ctx, k.account, cloudflare.ListWorkersKVsParams{
			NamespaceID: k.namespace,
			Prefix:      prefix,
			Limit:       min(1000, k.maxScan-scanned),
			Cursor:      cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: kv list: %v", forms.ErrStoreUnavailable, err)
		}
		for _, key := range resp.Result {
			scanned++
			if len(out) == f.Limit {
				break
			}
			if _, ok := parseKVKey(key.Name); !ok {
				continue
			}
			s, ok, err := k.get(ctx, key.Name)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, s)
			}
		}
		cursor = resp.ResultInfo.Cursor
		if cursor == "" {
			break
		}
	}
	return out, nil
}

// get devolve ok=false quando a chave sumiu entre o list e o get.
func (k *KV) get(ctx context.Context, key string) (forms.Submission, bool, error) {
	raw, err := k.api.GetWorkersKV(ctx, k.account, cloudflare.GetWorkersKVParams{
		NamespaceID: k.namespace,
		Key:         key,
	})
	if err != nil {
		var notFound *cloudflare.NotFoundError
		if errors.As(err, &notFound) {
			return forms.Submission{}, false, nil
		}
		return forms.Submission{}, false, fmt.Errorf("%w: kv get: %v", forms.ErrStoreUnavailable, err)
	}
	var s forms.Submission
	if err := json.Unmarshal(raw, &s); err != nil {
		return forms.Submission{}, false, fmt.Errorf("decode submission %s: %w", key, err)
	}
	return s, true, nil
}
