package store

import (
	"context"
	"sort"
	"time"

	"github.com/tekimax/tekimax-api/forms"

	gocache "github.com/patrickmn/go-cache"
)

const DefaultMemoryRetention = 30 * 24 * time.Hour

// Memory guarda submissões no processo. Some no restart; entradas expiram
// após a retenção.
type Memory struct {
	items     *gocache.Cache
	retention time.Duration
}

func NewMemory(retention time.Duration) *Memory {
	if retention <= 0 {
		retention = DefaultMemoryRetention
	}
	return &Memory{
		items:     gocache.New(retention, time.Hour),
		retention: retention,
	}
}

func (m *Memory) Save(_ context.Context, s forms.Submission) error {
	m.items.Set(s.ID, s, m.retention)
	return nil
}

func (m *Memory) List(_ context.Context, f forms.Filter) ([]forms.Submission, error) {
	f = f.Normalize()

	out := make([]forms.Submission, 0)
	for _, it := range m.items.Items() {
		s, ok := it.Object.(forms.Submission)
		if !ok || !f.Matches(s) {
			continue
		}
		out = append(out, s)
	}
	sortNewestFirst(out)
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) Len() int { return m.items.ItemCount() }

func sortNewestFirst(subs []forms.Submission) {
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID > subs[j].ID
		}
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}
