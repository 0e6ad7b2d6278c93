package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
)

type fakeCounter struct {
	res domain.WindowResult
	err error
}

func (c fakeCounter) Hit(context.Context, domain.Key) (domain.WindowResult, error) {
	return c.res, c.err
}

func TestWindowService_Decide_AllowsWhenNoCounter(t *testing.T) {
	dec, err := WindowService{}.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestWindowService_Decide_ReportsRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := WindowService{
		Counter: fakeCounter{res: domain.WindowResult{Count: 2, Limit: 5, ResetAt: now.Add(10 * time.Minute)}},
		Now:     func() time.Time { return now },
	}

	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.Remaining != 3 || dec.Limit != 5 {
		t.Fatalf("expected remaining=3 limit=5, got remaining=%d limit=%d", dec.Remaining, dec.Limit)
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestWindowService_Decide_BlocksUntilWindowReset(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := WindowService{
		Counter: fakeCounter{res: domain.WindowResult{Count: 6, Limit: 5, ResetAt: now.Add(90 * time.Second)}},
		Now:     func() time.Time { return now },
	}

	dec, _ := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 90*time.Second {
		t.Fatalf("expected RetryAfter=90s, got %s", dec.RetryAfter)
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
}

func TestWindowService_Decide_RetryAfterHasFloorOfOneSecond(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := WindowService{
		Counter: fakeCounter{res: domain.WindowResult{Count: 6, Limit: 5, ResetAt: now.Add(200 * time.Millisecond)}},
		Now:     func() time.Time { return now },
	}

	dec, _ := svc.Decide(context.Background(), "k")
	if dec.RetryAfter != time.Second {
		t.Fatalf("expected RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestWindowService_Decide_FailsOpenOnCounterError(t *testing.T) {
	boom := errors.New("redis down")
	svc := WindowService{Counter: fakeCounter{err: boom}}

	dec, err := svc.Decide(context.Background(), "k")
	if !errors.Is(err, boom) {
		t.Fatalf("expected counter error to be returned, got %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed when counter fails")
	}
}
