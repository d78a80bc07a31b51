package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"trivia-competition-service/internal/domain"
)

type countingLoader struct {
	gets  atomic.Int32
	lists atomic.Int32
	fail  bool
}

func (l *countingLoader) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	l.gets.Add(1)
	if l.fail {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return domain.Question{ID: id, Prompt: "capital?", Kind: domain.ClosedForm, Points: 10}, nil
}

func (l *countingLoader) ListActiveQuestions(_ context.Context) ([]domain.Question, error) {
	l.lists.Add(1)
	if l.fail {
		return nil, domain.ErrQuestionNotFound
	}
	return []domain.Question{
		{ID: "q1", Kind: domain.ClosedForm},
		{ID: "q2", Kind: domain.OpenForm},
	}, nil
}

func newTestCache(t *testing.T, loader QuestionLoader) (*QuestionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQuestionCache(client, loader, time.Minute), mr
}

func TestGetQuestionCachesOnFirstLoad(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache, mr := newTestCache(t, loader)

	q, err := cache.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.ID != "q1" || q.Points != 10 {
		t.Fatalf("unexpected question %+v", q)
	}
	if !mr.Exists("question:q1") {
		t.Fatal("expected cache entry after first load")
	}

	for i := 0; i < 5; i++ {
		if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
			t.Fatalf("cached get %d: %v", i, err)
		}
	}
	if got := loader.gets.Load(); got != 1 {
		t.Fatalf("expected a single backing load, got %d", got)
	}
}

func TestGetQuestionReloadsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache, mr := newTestCache(t, loader)

	if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := loader.gets.Load(); got != 2 {
		t.Fatalf("expected reload after TTL, got %d loads", got)
	}
}

func TestGetQuestionPropagatesLoaderError(t *testing.T) {
	loader := &countingLoader{fail: true}
	cache, _ := newTestCache(t, loader)

	if _, err := cache.GetQuestion(context.Background(), "q1"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestListActiveQuestionsCaches(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache, mr := newTestCache(t, loader)

	first, err := cache.ListActiveQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 2 || first[0].ID != "q1" || first[1].ID != "q2" {
		t.Fatalf("expected ordered question set, got %+v", first)
	}
	if !mr.Exists("questions:active") {
		t.Fatal("expected active-set cache entry")
	}

	if _, err := cache.ListActiveQuestions(ctx); err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if got := loader.lists.Load(); got != 1 {
		t.Fatalf("expected a single backing list, got %d", got)
	}
}

func TestCorruptCacheEntryFallsBackToLoader(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache, mr := newTestCache(t, loader)

	mr.Set("question:q1", "{not json")
	q, err := cache.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("get with corrupt entry: %v", err)
	}
	if q.ID != "q1" {
		t.Fatalf("unexpected question %+v", q)
	}
	if got := loader.gets.Load(); got != 1 {
		t.Fatalf("expected fallback to the loader, got %d loads", got)
	}
}
