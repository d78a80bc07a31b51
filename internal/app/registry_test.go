package app

import (
	"context"
	"sync"
	"testing"

	"trivia-competition-service/internal/domain"
	"trivia-competition-service/internal/infra/memory"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SeedQuestions(testQuestions())
	return NewRegistry(store, store, &fakeBroadcaster{}, nil), store
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	registry, _ := newTestRegistry(t)

	a := registry.GetOrCreate("comp-1")
	b := registry.GetOrCreate("comp-1")
	if a != b {
		t.Fatal("expected one engine per competition ID")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one registered engine, got %d", registry.Len())
	}

	c := registry.GetOrCreate("comp-2")
	if c == a {
		t.Fatal("expected distinct engines for distinct competitions")
	}
	if registry.Len() != 2 {
		t.Fatalf("expected two registered engines, got %d", registry.Len())
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	registry, _ := newTestRegistry(t)

	games := make([]*Game, 16)
	var wg sync.WaitGroup
	for i := range games {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			games[i] = registry.GetOrCreate("comp-1")
		}(i)
	}
	wg.Wait()

	for i, g := range games {
		if g != games[0] {
			t.Fatalf("goroutine %d got a different engine", i)
		}
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one registered engine, got %d", registry.Len())
	}
}

func TestGetWithoutCreate(t *testing.T) {
	registry, _ := newTestRegistry(t)

	if _, ok := registry.Get("comp-1"); ok {
		t.Fatal("expected no engine before first reference")
	}
	created := registry.GetOrCreate("comp-1")
	got, ok := registry.Get("comp-1")
	if !ok || got != created {
		t.Fatal("expected Get to return the registered engine")
	}
}

func TestRemoveStopsAndDiscards(t *testing.T) {
	registry, store := newTestRegistry(t)
	register(t, store, "comp-1", "Alice", 1)

	game := registry.GetOrCreate("comp-1")
	if err := game.StartQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("start question: %v", err)
	}

	registry.Remove("comp-1")
	if _, ok := registry.Get("comp-1"); ok {
		t.Fatal("expected engine discarded after Remove")
	}
	registry.Remove("comp-1") // removing twice is a no-op
}

func TestListActiveComposesSnapshots(t *testing.T) {
	registry, store := newTestRegistry(t)
	store.SeedCompetitions([]domain.Competition{
		{ID: "comp-1", Name: "Spring Finals", Status: "active"},
		{ID: "comp-2", Name: "Autumn Qualifiers", Status: "active"},
	})
	register(t, store, "comp-1", "Alice", 1)

	game := registry.GetOrCreate("comp-1")
	if err := game.StartQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("start question: %v", err)
	}

	statuses, err := registry.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	byID := make(map[string]CompetitionStatus, len(statuses))
	for _, s := range statuses {
		byID[s.Competition.ID] = s
	}
	if byID["comp-1"].Snapshot.State != domain.StateQuestionActive {
		t.Fatalf("expected comp-1 active, got %s", byID["comp-1"].Snapshot.State)
	}
	if byID["comp-2"].Snapshot.State != domain.StateIdle {
		t.Fatalf("expected comp-2 idle, got %s", byID["comp-2"].Snapshot.State)
	}
}
