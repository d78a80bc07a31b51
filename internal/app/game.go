package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-competition-service/internal/domain"
)

// allowedTransitions is the lifecycle table. Transitions outside it are
// logged as warnings but not rejected, so a moderator can always recover a
// stuck competition.
var allowedTransitions = map[domain.State][]domain.State{
	domain.StateIdle:           {domain.StateQuestionActive},
	domain.StateQuestionActive: {domain.StateLocked},
	domain.StateLocked:         {domain.StateGrading, domain.StateReveal},
	domain.StateGrading:        {domain.StateReveal},
	domain.StateReveal:         {domain.StateIdle, domain.StateQuestionActive},
}

// Game owns the five-state round lifecycle for one competition: the current
// question, the countdown, submission tracking and the reveal cursor. All
// mutation happens under one mutex; two Game instances share nothing.
type Game struct {
	competitionID string
	store         Store
	questions     QuestionBank
	broadcaster   Broadcaster
	log           *logrus.Entry
	clock         *countdown

	mu            sync.Mutex
	state         domain.State
	question      *domain.Question
	timeRemaining int
	answered      map[string]struct{}
	revealStep    int
	revealMode    domain.RevealMode
}

// NewGame builds a game engine for one competition.
func NewGame(competitionID string, store Store, questions QuestionBank, broadcaster Broadcaster, log *logrus.Logger) *Game {
	return newGameWithInterval(competitionID, store, questions, broadcaster, log, time.Second)
}

// newGameWithInterval lets tests drive the countdown at a faster pace.
func newGameWithInterval(competitionID string, store Store, questions QuestionBank, broadcaster Broadcaster, log *logrus.Logger, interval time.Duration) *Game {
	if log == nil {
		log = logrus.New()
	}
	return &Game{
		competitionID: competitionID,
		store:         store,
		questions:     questions,
		broadcaster:   broadcaster,
		log:           log.WithField("competition", competitionID),
		clock:         newCountdown(interval),
		state:         domain.StateIdle,
		answered:      make(map[string]struct{}),
		revealMode:    domain.RevealAuto,
	}
}

// CompetitionID returns the owning competition's ID.
func (g *Game) CompetitionID() string { return g.competitionID }

// Snapshot returns the externally visible engine state.
func (g *Game) Snapshot() domain.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() domain.Snapshot {
	answered := make([]string, 0, len(g.answered))
	for id := range g.answered {
		answered = append(answered, id)
	}
	sort.Strings(answered)

	// Snapshots go to every audience; accepted keys never ride along.
	// Adjudicators get them on their question-started payload.
	var q *domain.Question
	if g.question != nil {
		copied := *g.question
		copied.AcceptedKeys = nil
		q = &copied
	}
	return domain.Snapshot{
		CompetitionID: g.competitionID,
		State:         g.state,
		Question:      q,
		TimeRemaining: g.timeRemaining,
		Answered:      answered,
		RevealStep:    g.revealStep,
		UpdatedAt:     time.Now(),
	}
}

// setStateLocked transitions the lifecycle and notifies every audience.
func (g *Game) setStateLocked(next domain.State) {
	if !transitionAllowed(g.state, next) {
		g.log.WithFields(logrus.Fields{
			"from": g.state,
			"to":   next,
		}).Warn("lifecycle transition outside the allowed table")
	}
	g.state = next
	g.log.WithField("state", next).Info("state changed")
	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{
		Type:    domain.EventStateChanged,
		Payload: g.snapshotLocked(),
	})
}

func transitionAllowed(from, to domain.State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StartQuestion loads a question, resets the round and opens submissions.
// Contestants get the prompt and choices, adjudicators additionally get the
// accepted keys, and spectators get a masked payload with no prompt at all.
func (g *Game) StartQuestion(ctx context.Context, questionID string) error {
	question, err := g.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}

	all, err := g.questions.ListActiveQuestions(ctx)
	if err != nil {
		return fmt.Errorf("list active questions: %w", err)
	}
	question.Total = len(all)
	for i, q := range all {
		if q.ID == question.ID {
			question.Index = i + 1
			break
		}
	}

	quote, err := g.store.RandomQuote(ctx)
	if err != nil {
		quote = "" // the screen can live without one
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.clock.stop()
	g.question = &question
	g.timeRemaining = question.Duration
	g.answered = make(map[string]struct{})
	g.revealStep = 0
	g.setStateLocked(domain.StateQuestionActive)

	contestantView := question
	contestantView.AcceptedKeys = nil
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceContestant, domain.Event{
		Type:    domain.EventQuestionStarted,
		Payload: contestantView,
	})
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceAdjudicator, domain.Event{
		Type:    domain.EventQuestionStarted,
		Payload: question,
	})
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceSpectator, domain.Event{
		Type: domain.EventQuestionStarted,
		Payload: domain.MaskedQuestion{
			Category: question.Category,
			Points:   question.Points,
			Duration: question.Duration,
			Quote:    quote,
			MediaURL: question.MediaURL,
			Index:    question.Index,
			Total:    question.Total,
		},
	})

	g.clock.start(func() { g.handleTick(context.Background()) })
	g.log.WithFields(logrus.Fields{
		"question": question.ID,
		"kind":     question.Kind,
		"duration": question.Duration,
	}).Info("question started")
	return nil
}

// handleTick decrements the countdown, syncs it to every client, and locks
// the round when it reaches zero.
func (g *Game) handleTick(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != domain.StateQuestionActive {
		return
	}

	g.timeRemaining--
	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{
		Type: domain.EventCountdownTick,
		Payload: domain.CountdownTick{
			TimeRemaining: g.timeRemaining,
			ServerTime:    time.Now(),
		},
	})

	if g.timeRemaining <= 0 {
		if err := g.lockLocked(ctx); err != nil {
			g.log.WithError(err).Error("lock on countdown expiry failed")
		}
	}
}

// Lock stops the countdown and closes submissions; the moderator skip command
// lands here before the timer runs out.
func (g *Game) Lock(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lockLocked(ctx)
}

func (g *Game) lockLocked(ctx context.Context) error {
	g.clock.stop()
	g.setStateLocked(domain.StateLocked)

	if g.question == nil {
		return nil
	}
	question := *g.question

	if err := g.fillMissingAnswers(ctx, question.ID); err != nil {
		return err
	}

	if question.Kind == domain.ClosedForm {
		if err := g.autoGradeLocked(ctx, question); err != nil {
			return err
		}
		return g.showResultsLocked(ctx, question)
	}

	return g.startGradingLocked(ctx, question)
}

// fillMissingAnswers synthesizes an empty answer for every online contestant
// who never submitted, so grading and the leaderboard treat "no answer"
// uniformly.
func (g *Game) fillMissingAnswers(ctx context.Context, questionID string) error {
	contestants, err := g.store.ListContestants(ctx, g.competitionID)
	if err != nil {
		return fmt.Errorf("list contestants: %w", err)
	}
	answers, err := g.store.ListAnswers(ctx, questionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	submitted := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		submitted[a.ContestantID] = struct{}{}
	}

	for _, c := range contestants {
		if c.Status != domain.StatusOnline {
			continue
		}
		if _, ok := submitted[c.ID]; ok {
			continue
		}
		if _, err := g.store.RecordAnswer(ctx, questionID, c.ID, "", 0); err != nil && !errors.Is(err, domain.ErrDuplicateSubmission) {
			return fmt.Errorf("synthesize empty answer: %w", err)
		}
	}
	return nil
}

func (g *Game) autoGradeLocked(ctx context.Context, question domain.Question) error {
	answers, err := g.store.ListAnswers(ctx, question.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	for _, a := range answers {
		correct, points := autoGrade(question, a)
		if err := g.store.GradeAnswer(ctx, a.ID, correct, points); err != nil {
			return fmt.Errorf("grade answer %s: %w", a.ID, err)
		}
	}
	return nil
}

func (g *Game) startGradingLocked(ctx context.Context, question domain.Question) error {
	g.setStateLocked(domain.StateGrading)

	answers, err := g.store.ListAnswers(ctx, question.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	g.broadcaster.Broadcast(g.competitionID, domain.AudienceAdjudicator, domain.Event{
		Type: domain.EventReviewData,
		Payload: domain.ReviewData{
			QuestionID:   question.ID,
			Prompt:       question.Prompt,
			AcceptedKeys: question.AcceptedKeys,
			Points:       question.Points,
			Groups:       GroupAnswers(question, answers),
		},
	})
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceSpectator, domain.Event{
		Type:    domain.EventGradingStatus,
		Payload: domain.GradingStatus{Message: "Adjudication in progress..."},
	})
	return nil
}

// SubmitAnswer records one contestant's submission. Persisted storage is the
// source of truth for duplicates; the in-memory answered set is a fast path.
// State is re-validated after the persistence round-trip so a submission
// racing the lock is rejected rather than half-applied.
func (g *Game) SubmitAnswer(ctx context.Context, contestantID, text string, timeRemaining int) error {
	g.mu.Lock()
	if g.state != domain.StateQuestionActive || g.question == nil {
		g.mu.Unlock()
		return domain.ErrInvalidState
	}
	if _, ok := g.answered[contestantID]; ok {
		g.mu.Unlock()
		return domain.ErrDuplicateSubmission
	}
	questionID := g.question.ID
	if timeRemaining < 0 {
		timeRemaining = g.timeRemaining
	}
	g.mu.Unlock()

	if _, err := g.store.RecordAnswer(ctx, questionID, contestantID, text, timeRemaining); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != domain.StateQuestionActive || g.question == nil || g.question.ID != questionID {
		return domain.ErrInvalidState
	}
	g.answered[contestantID] = struct{}{}
	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{
		Type: domain.EventSubmissionStatus,
		Payload: domain.SubmissionStatus{
			ContestantID: contestantID,
			Status:       "answered",
		},
	})
	return nil
}

// GradeAnswer applies a single adjudicator decision.
func (g *Game) GradeAnswer(ctx context.Context, answerID string, correct bool, points int) error {
	return g.store.GradeAnswer(ctx, answerID, correct, points)
}

// GradeAnswersBulk applies one (correct, points) pair to a whole group.
func (g *Game) GradeAnswersBulk(ctx context.Context, answerIDs []string, correct bool, points int) error {
	return g.store.GradeAnswersBulk(ctx, answerIDs, correct, points)
}

// CommitGrading finalizes adjudication and moves the round to reveal.
// Ungraded answers stay in the results payload with nil correctness.
func (g *Game) CommitGrading(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != domain.StateGrading || g.question == nil {
		return domain.ErrInvalidState
	}
	return g.showResultsLocked(ctx, *g.question)
}

func (g *Game) showResultsLocked(ctx context.Context, question domain.Question) error {
	answers, err := g.store.ListAnswers(ctx, question.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	leaderboard, err := g.store.Leaderboard(ctx, g.competitionID)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	mode := g.revealModeFromSettings(ctx)

	if g.question == nil || g.question.ID != question.ID {
		// reset raced the grading round-trip; do not broadcast stale results
		return domain.ErrInvalidState
	}

	g.revealMode = mode
	g.revealStep = 0
	g.setStateLocked(domain.StateReveal)

	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{
		Type: domain.EventResults,
		Payload: domain.Results{
			Question: domain.ResultQuestion{
				Prompt:        question.Prompt,
				CorrectAnswer: question.CanonicalAnswer(),
				Points:        question.Points,
				MediaURL:      question.MediaURL,
			},
			Answers:     answers,
			Leaderboard: leaderboard,
			Mode:        mode,
		},
	})

	if mode == domain.RevealManual {
		g.broadcaster.Broadcast(g.competitionID, domain.AudienceModerator, domain.Event{
			Type: domain.EventRevealStepUpdate,
			Payload: domain.RevealStepStatus{
				Step: 0,
				Name: domain.RevealStepName(0),
				Done: false,
			},
		})
	}
	return nil
}

func (g *Game) revealModeFromSettings(ctx context.Context) domain.RevealMode {
	raw, err := g.store.Setting(ctx, SettingRevealMode)
	if err != nil || raw == "" {
		return domain.RevealAuto
	}
	if domain.RevealMode(raw) == domain.RevealManual {
		return domain.RevealManual
	}
	return domain.RevealAuto
}

// AdvanceRevealStep moves the manually paced reveal forward one phase.
// Spectators get the new index; the moderator gets the phase name plus a
// completion flag. Advancing past the full leaderboard is a no-op.
func (g *Game) AdvanceRevealStep(ctx context.Context) (domain.RevealStepStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != domain.StateReveal || g.revealMode != domain.RevealManual {
		return domain.RevealStepStatus{}, domain.ErrInvalidState
	}

	status := domain.RevealStepStatus{
		Step: g.revealStep,
		Name: domain.RevealStepName(g.revealStep),
		Done: domain.RevealComplete(g.revealStep),
	}
	if status.Done {
		return status, nil
	}

	g.revealStep++
	status = domain.RevealStepStatus{
		Step: g.revealStep,
		Name: domain.RevealStepName(g.revealStep),
		Done: domain.RevealComplete(g.revealStep),
	}

	g.broadcaster.Broadcast(g.competitionID, domain.AudienceSpectator, domain.Event{
		Type:    domain.EventRevealStepUpdate,
		Payload: domain.RevealStepIndex{Step: g.revealStep},
	})
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceModerator, domain.Event{
		Type:    domain.EventRevealStepUpdate,
		Payload: status,
	})
	return status, nil
}

// GoIdle clears the round and returns to the waiting state.
func (g *Game) GoIdle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetRoundLocked()
}

func (g *Game) resetRoundLocked() {
	g.clock.stop()
	g.question = nil
	g.timeRemaining = 0
	g.answered = make(map[string]struct{})
	g.revealStep = 0
	g.setStateLocked(domain.StateIdle)
}

// ResetCompetition wipes the round plus every contestant and answer of this
// competition, then pushes empty snapshots to every audience.
func (g *Game) ResetCompetition(ctx context.Context) error {
	g.mu.Lock()
	g.resetRoundLocked()
	g.mu.Unlock()

	if err := g.store.ClearCompetitionData(ctx, g.competitionID); err != nil {
		return fmt.Errorf("clear competition data: %w", err)
	}

	contestants, err := g.store.ListContestants(ctx, g.competitionID)
	if err != nil {
		return fmt.Errorf("list contestants: %w", err)
	}
	leaderboard, err := g.store.Leaderboard(ctx, g.competitionID)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{Type: domain.EventCompetitionReset})
	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{
		Type:    domain.EventContestantsUpdated,
		Payload: contestants,
	})
	g.broadcaster.BroadcastAll(g.competitionID, domain.Event{
		Type:    domain.EventLeaderboardUpdated,
		Payload: leaderboard,
	})
	g.log.Info("competition reset")
	return nil
}

// RegisterContestant upserts a contestant by table number, marks them online
// and refreshes the roster for moderator and spectator screens.
func (g *Game) RegisterContestant(ctx context.Context, name string, tableNo int) (domain.Contestant, error) {
	contestant, err := g.store.UpsertContestant(ctx, g.competitionID, name, tableNo)
	if err != nil {
		return domain.Contestant{}, fmt.Errorf("upsert contestant: %w", err)
	}
	g.broadcastRoster(ctx)
	return contestant, nil
}

// MarkContestantOffline flags a dropped connection and refreshes the roster.
func (g *Game) MarkContestantOffline(ctx context.Context, contestantID string) {
	if err := g.store.SetContestantStatus(ctx, contestantID, domain.StatusOffline); err != nil {
		g.log.WithError(err).WithField("contestant", contestantID).Warn("mark offline failed")
		return
	}
	g.broadcastRoster(ctx)
}

func (g *Game) broadcastRoster(ctx context.Context) {
	contestants, err := g.store.ListContestants(ctx, g.competitionID)
	if err != nil {
		g.log.WithError(err).Warn("roster refresh failed")
		return
	}
	event := domain.Event{Type: domain.EventContestantsUpdated, Payload: contestants}
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceModerator, event)
	g.broadcaster.Broadcast(g.competitionID, domain.AudienceSpectator, event)
}

// Contestants lists the competition roster.
func (g *Game) Contestants(ctx context.Context) ([]domain.Contestant, error) {
	return g.store.ListContestants(ctx, g.competitionID)
}

// Leaderboard returns the ordered scoreboard.
func (g *Game) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return g.store.Leaderboard(ctx, g.competitionID)
}

// ActiveQuestions lists the active question set for moderator screens.
func (g *Game) ActiveQuestions(ctx context.Context) ([]domain.Question, error) {
	return g.questions.ListActiveQuestions(ctx)
}

// Quote fetches a rotating quote for the spectator screen.
func (g *Game) Quote(ctx context.Context) (string, error) {
	return g.store.RandomQuote(ctx)
}

// Stop cancels any running countdown; used when the registry discards the
// instance.
func (g *Game) Stop() {
	g.clock.stop()
}
