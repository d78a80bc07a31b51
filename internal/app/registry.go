package app

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"trivia-competition-service/internal/domain"
)

// Registry hands out one Game per competition ID. Instances share the
// broadcaster and storage but no mutable state, so competitions never observe
// each other's countdowns, submissions or resets.
type Registry struct {
	store       Store
	questions   QuestionBank
	broadcaster Broadcaster
	log         *logrus.Logger

	mu    sync.RWMutex
	games map[string]*Game
}

// CompetitionStatus pairs an externally managed competition record with its
// in-memory engine snapshot.
type CompetitionStatus struct {
	Competition domain.Competition `json:"competition"`
	Snapshot    domain.Snapshot    `json:"snapshot"`
}

func NewRegistry(store Store, questions QuestionBank, broadcaster Broadcaster, log *logrus.Logger) *Registry {
	return &Registry{
		store:       store,
		questions:   questions,
		broadcaster: broadcaster,
		log:         log,
		games:       make(map[string]*Game),
	}
}

// GetOrCreate returns the game engine for a competition, constructing and
// registering it on first reference.
func (r *Registry) GetOrCreate(competitionID string) *Game {
	r.mu.RLock()
	game, ok := r.games[competitionID]
	r.mu.RUnlock()
	if ok {
		return game
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if game, ok := r.games[competitionID]; ok {
		return game
	}
	game = NewGame(competitionID, r.store, r.questions, r.broadcaster, r.log)
	r.games[competitionID] = game
	if r.log != nil {
		r.log.WithField("competition", competitionID).Info("game engine created")
	}
	return game
}

// Get returns a registered engine without creating one.
func (r *Registry) Get(competitionID string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	game, ok := r.games[competitionID]
	return game, ok
}

// Remove stops a competition's countdown and discards its engine.
func (r *Registry) Remove(competitionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[competitionID]
	if !ok {
		return
	}
	game.Stop()
	delete(r.games, competitionID)
	if r.log != nil {
		r.log.WithField("competition", competitionID).Info("game engine removed")
	}
}

// ListActive composes the external active-competition query with each
// engine's in-memory snapshot.
func (r *Registry) ListActive(ctx context.Context) ([]CompetitionStatus, error) {
	competitions, err := r.store.ListActiveCompetitions(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]CompetitionStatus, 0, len(competitions))
	for _, comp := range competitions {
		statuses = append(statuses, CompetitionStatus{
			Competition: comp,
			Snapshot:    r.GetOrCreate(comp.ID).Snapshot(),
		})
	}
	return statuses, nil
}

// Len reports the number of registered engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
