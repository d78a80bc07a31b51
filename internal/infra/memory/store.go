package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-competition-service/internal/domain"
)

// Store is an in-memory implementation of the engine's storage contract. It
// backs tests and postgres-less runs. Answer uniqueness per (question,
// contestant) is enforced here, making persisted state the source of truth
// for duplicate submissions.
type Store struct {
	mu            sync.RWMutex
	questionOrder []string
	questions     map[string]domain.Question
	contestants   map[string]*contestant
	answers       map[string]*domain.Answer
	answerIndex   map[string]string // questionID + "\x00" + contestantID -> answerID
	quotes        []string
	settings      map[string]string
	competitions  []domain.Competition
	rnd           *rand.Rand
}

type contestant struct {
	domain.Contestant
	competitionID string
}

func NewStore() *Store {
	return &Store{
		questions:   make(map[string]domain.Question),
		contestants: make(map[string]*contestant),
		answers:     make(map[string]*domain.Answer),
		answerIndex: make(map[string]string),
		settings:    make(map[string]string),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SeedQuestions loads the active question set, in order.
func (s *Store) SeedQuestions(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		if _, ok := s.questions[q.ID]; !ok {
			s.questionOrder = append(s.questionOrder, q.ID)
		}
		s.questions[q.ID] = q
	}
}

// SeedQuotes loads the spectator quote pool.
func (s *Store) SeedQuotes(quotes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, quotes...)
}

// SeedCompetitions loads the externally managed competition records.
func (s *Store) SeedCompetitions(competitions []domain.Competition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitions = append(s.competitions, competitions...)
}

// SetSetting stores a configuration value such as the reveal progression mode.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) ListActiveQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questionOrder))
	for _, id := range s.questionOrder {
		out = append(out, s.questions[id])
	}
	return out, nil
}

func (s *Store) RecordAnswer(_ context.Context, questionID, contestantID, text string, timeRemaining int) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := questionID + "\x00" + contestantID
	if _, ok := s.answerIndex[key]; ok {
		return domain.Answer{}, domain.ErrDuplicateSubmission
	}

	c, ok := s.contestants[contestantID]
	if !ok {
		return domain.Answer{}, domain.ErrContestantNotFound
	}

	answer := &domain.Answer{
		ID:             uuid.NewString(),
		QuestionID:     questionID,
		ContestantID:   contestantID,
		ContestantName: c.Name,
		TableNo:        c.TableNo,
		Text:           text,
		TimeRemaining:  timeRemaining,
	}
	s.answers[answer.ID] = answer
	s.answerIndex[key] = answer.ID
	return *answer, nil
}

func (s *Store) ListAnswers(_ context.Context, questionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, a := range s.answers {
		if a.QuestionID == questionID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNo < out[j].TableNo })
	return out, nil
}

func (s *Store) GradeAnswer(_ context.Context, answerID string, correct bool, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gradeLocked(answerID, correct, points)
}

func (s *Store) GradeAnswersBulk(_ context.Context, answerIDs []string, correct bool, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range answerIDs {
		if err := s.gradeLocked(id, correct, points); err != nil {
			return err
		}
	}
	return nil
}

// gradeLocked applies the delta between the previously awarded points and the
// new grade, so re-grading the same answer never double-counts.
func (s *Store) gradeLocked(answerID string, correct bool, points int) error {
	a, ok := s.answers[answerID]
	if !ok {
		return domain.ErrAnswerNotFound
	}

	awarded := 0
	if correct {
		awarded = points
	}
	previous := 0
	if a.Points != nil {
		previous = *a.Points
	}

	a.Correct = &correct
	a.Points = &awarded

	if c, ok := s.contestants[a.ContestantID]; ok {
		c.Score += awarded - previous
	}
	return nil
}

func (s *Store) ListContestants(_ context.Context, competitionID string) ([]domain.Contestant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contestant, 0)
	for _, c := range s.contestants {
		if c.competitionID == competitionID {
			out = append(out, c.Contestant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNo < out[j].TableNo })
	return out, nil
}

func (s *Store) UpsertContestant(_ context.Context, competitionID, name string, tableNo int) (domain.Contestant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.contestants {
		if c.competitionID == competitionID && c.TableNo == tableNo {
			c.Name = name
			c.Status = domain.StatusOnline
			return c.Contestant, nil
		}
	}

	c := &contestant{
		Contestant: domain.Contestant{
			ID:      uuid.NewString(),
			Name:    name,
			TableNo: tableNo,
			Status:  domain.StatusOnline,
		},
		competitionID: competitionID,
	}
	s.contestants[c.ID] = c
	return c.Contestant, nil
}

func (s *Store) SetContestantStatus(_ context.Context, contestantID string, status domain.ContestantStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contestants[contestantID]
	if !ok {
		return domain.ErrContestantNotFound
	}
	c.Status = status
	return nil
}

func (s *Store) Leaderboard(_ context.Context, competitionID string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0)
	for _, c := range s.contestants {
		if c.competitionID != competitionID || c.Status == domain.StatusDisqualified {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			ContestantID: c.ID,
			Name:         c.Name,
			TableNo:      c.TableNo,
			Score:        c.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (s *Store) ClearCompetitionData(_ context.Context, competitionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]struct{})
	for id, c := range s.contestants {
		if c.competitionID == competitionID {
			removed[id] = struct{}{}
			delete(s.contestants, id)
		}
	}
	for id, a := range s.answers {
		if _, ok := removed[a.ContestantID]; ok {
			delete(s.answers, id)
			delete(s.answerIndex, a.QuestionID+"\x00"+a.ContestantID)
		}
	}
	return nil
}

func (s *Store) Setting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

func (s *Store) RandomQuote(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.quotes) == 0 {
		return "", domain.ErrQuoteNotFound
	}
	return s.quotes[s.rnd.Intn(len(s.quotes))], nil
}

func (s *Store) ListActiveCompetitions(_ context.Context) ([]domain.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Competition, len(s.competitions))
	copy(out, s.competitions)
	return out, nil
}
