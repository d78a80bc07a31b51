package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-competition-service/internal/domain"
)

// Store implements the engine's storage contract on Postgres. Answer
// uniqueness per (question, contestant) is a database constraint; score
// updates apply the delta against the previously awarded points inside one
// transaction, so a re-grade never double-counts.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, prompt, COALESCE(media_url, ''), kind, choices, accepted_keys, points, duration, COALESCE(category, '')
		FROM questions
		WHERE id = $1 AND is_active`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *Store) ListActiveQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, prompt, COALESCE(media_url, ''), kind, choices, accepted_keys, points, duration, COALESCE(category, '')
		FROM questions
		WHERE is_active
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (domain.Question, error) {
	var q domain.Question
	var choices, keys []byte
	if err := row.Scan(&q.ID, &q.Prompt, &q.MediaURL, &q.Kind, &choices, &keys, &q.Points, &q.Duration, &q.Category); err != nil {
		return domain.Question{}, err
	}
	if len(choices) > 0 {
		if err := json.Unmarshal(choices, &q.Choices); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal choices: %w", err)
		}
	}
	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &q.AcceptedKeys); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal accepted keys: %w", err)
		}
	}
	return q, nil
}

func (s *Store) RecordAnswer(ctx context.Context, questionID, contestantID, text string, timeRemaining int) (domain.Answer, error) {
	id := uuid.NewString()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, question_id, contestant_id, answer_text, time_remaining)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (question_id, contestant_id) DO NOTHING`,
		id, questionID, contestantID, text, timeRemaining)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("record answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Answer{}, domain.ErrDuplicateSubmission
	}

	var a domain.Answer
	err = s.pool.QueryRow(ctx, `
		SELECT a.id, a.question_id, a.contestant_id, c.name, c.table_no, a.answer_text, a.time_remaining
		FROM answers a
		JOIN contestants c ON c.id = a.contestant_id
		WHERE a.id = $1`, id).
		Scan(&a.ID, &a.QuestionID, &a.ContestantID, &a.ContestantName, &a.TableNo, &a.Text, &a.TimeRemaining)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("read back answer: %w", err)
	}
	return a, nil
}

func (s *Store) ListAnswers(ctx context.Context, questionID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.question_id, a.contestant_id, c.name, c.table_no, a.answer_text,
		       a.time_remaining, a.is_correct, a.points_awarded
		FROM answers a
		JOIN contestants c ON c.id = a.contestant_id
		WHERE a.question_id = $1
		ORDER BY a.submit_time`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.ContestantID, &a.ContestantName, &a.TableNo,
			&a.Text, &a.TimeRemaining, &a.Correct, &a.Points); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GradeAnswer(ctx context.Context, answerID string, correct bool, points int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return gradeInTx(ctx, tx, answerID, correct, points)
	})
}

func (s *Store) GradeAnswersBulk(ctx context.Context, answerIDs []string, correct bool, points int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, id := range answerIDs {
			if err := gradeInTx(ctx, tx, id, correct, points); err != nil {
				return err
			}
		}
		return nil
	})
}

func gradeInTx(ctx context.Context, tx pgx.Tx, answerID string, correct bool, points int) error {
	var contestantID string
	var previous int
	err := tx.QueryRow(ctx, `
		SELECT contestant_id, COALESCE(points_awarded, 0)
		FROM answers
		WHERE id = $1
		FOR UPDATE`, answerID).Scan(&contestantID, &previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAnswerNotFound
	}
	if err != nil {
		return fmt.Errorf("lock answer: %w", err)
	}

	awarded := 0
	if correct {
		awarded = points
	}

	if _, err := tx.Exec(ctx, `
		UPDATE answers SET is_correct = $2, points_awarded = $3 WHERE id = $1`,
		answerID, correct, awarded); err != nil {
		return fmt.Errorf("grade answer: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE contestants SET total_score = total_score + $2 WHERE id = $1`,
		contestantID, awarded-previous); err != nil {
		return fmt.Errorf("apply score delta: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListContestants(ctx context.Context, competitionID string) ([]domain.Contestant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, table_no, total_score, status
		FROM contestants
		WHERE competition_id = $1
		ORDER BY table_no`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list contestants: %w", err)
	}
	defer rows.Close()

	var out []domain.Contestant
	for rows.Next() {
		var c domain.Contestant
		if err := rows.Scan(&c.ID, &c.Name, &c.TableNo, &c.Score, &c.Status); err != nil {
			return nil, fmt.Errorf("scan contestant: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertContestant(ctx context.Context, competitionID, name string, tableNo int) (domain.Contestant, error) {
	var c domain.Contestant
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contestants (id, competition_id, name, table_no, status)
		VALUES ($1, $2, $3, $4, 'ONLINE')
		ON CONFLICT (competition_id, table_no)
		DO UPDATE SET name = EXCLUDED.name, status = 'ONLINE'
		RETURNING id, name, table_no, total_score, status`,
		uuid.NewString(), competitionID, name, tableNo).
		Scan(&c.ID, &c.Name, &c.TableNo, &c.Score, &c.Status)
	if err != nil {
		return domain.Contestant{}, fmt.Errorf("upsert contestant: %w", err)
	}
	return c, nil
}

func (s *Store) SetContestantStatus(ctx context.Context, contestantID string, status domain.ContestantStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE contestants SET status = $2 WHERE id = $1`, contestantID, status)
	if err != nil {
		return fmt.Errorf("set contestant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContestantNotFound
	}
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, competitionID string) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, table_no, total_score
		FROM contestants
		WHERE competition_id = $1 AND status != 'DISQUALIFIED'
		ORDER BY total_score DESC, name ASC`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.ContestantID, &e.Name, &e.TableNo, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ClearCompetitionData(ctx context.Context, competitionID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM answers
			WHERE contestant_id IN (SELECT id FROM contestants WHERE competition_id = $1)`,
			competitionID); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM contestants WHERE competition_id = $1`, competitionID); err != nil {
			return fmt.Errorf("clear contestants: %w", err)
		}
		return nil
	})
}

func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (s *Store) RandomQuote(ctx context.Context) (string, error) {
	var text string
	err := s.pool.QueryRow(ctx, `SELECT text FROM quotes ORDER BY RANDOM() LIMIT 1`).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrQuoteNotFound
	}
	if err != nil {
		return "", fmt.Errorf("random quote: %w", err)
	}
	return text, nil
}

func (s *Store) ListActiveCompetitions(ctx context.Context) ([]domain.Competition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, status
		FROM competitions
		WHERE status = 'ACTIVE'
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	var out []domain.Competition
	for rows.Next() {
		var c domain.Competition
		if err := rows.Scan(&c.ID, &c.Name, &c.Status); err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
