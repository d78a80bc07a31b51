package app

import (
	"context"

	"trivia-competition-service/internal/domain"
)

// QuestionBank loads question content (from cache/backing store).
type QuestionBank interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListActiveQuestions(ctx context.Context) ([]domain.Question, error)
}

// Store is the persistence collaborator for contestants, answers, scores and
// settings. Implementations must reject a second answer for the same
// (question, contestant) pair with domain.ErrDuplicateSubmission, and must
// apply score changes as deltas so re-grading an answer never double-counts.
type Store interface {
	RecordAnswer(ctx context.Context, questionID, contestantID, text string, timeRemaining int) (domain.Answer, error)
	ListAnswers(ctx context.Context, questionID string) ([]domain.Answer, error)
	GradeAnswer(ctx context.Context, answerID string, correct bool, points int) error
	GradeAnswersBulk(ctx context.Context, answerIDs []string, correct bool, points int) error

	ListContestants(ctx context.Context, competitionID string) ([]domain.Contestant, error)
	UpsertContestant(ctx context.Context, competitionID, name string, tableNo int) (domain.Contestant, error)
	SetContestantStatus(ctx context.Context, contestantID string, status domain.ContestantStatus) error
	Leaderboard(ctx context.Context, competitionID string) ([]domain.LeaderboardEntry, error)

	ClearCompetitionData(ctx context.Context, competitionID string) error
	Setting(ctx context.Context, key string) (string, error)
	RandomQuote(ctx context.Context) (string, error)
	ListActiveCompetitions(ctx context.Context) ([]domain.Competition, error)
}

// Broadcaster routes outbound events to one audience scope of one
// competition, or to all scopes at once. Implementations must be safe for
// concurrent dispatch from multiple game instances.
type Broadcaster interface {
	Broadcast(competitionID string, audience domain.Audience, event domain.Event)
	BroadcastAll(competitionID string, event domain.Event)
}

// SettingRevealMode is the settings key controlling reveal progression.
const SettingRevealMode = "reveal_progression_mode"
