package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-competition-service/internal/app"
	"trivia-competition-service/internal/domain"
	"trivia-competition-service/internal/infra/postgres"
	"trivia-competition-service/internal/infra/postgres/migrations"
	infraredis "trivia-competition-service/internal/infra/redis"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, domain.Audience, domain.Event) {}
func (nopBroadcaster) BroadcastAll(string, domain.Event)               {}

func TestClosedFormRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	questions := infraredis.NewQuestionCache(redisClient, store, 5*time.Minute)

	game := app.NewGame("comp-1", store, questions, nopBroadcaster{}, nil)
	defer game.Stop()

	alice, err := game.RegisterContestant(ctx, "Alice", 1)
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	bob, err := game.RegisterContestant(ctx, "Bob", 2)
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}

	if err := game.StartQuestion(ctx, "q1"); err != nil {
		t.Fatalf("start question: %v", err)
	}
	snap := game.Snapshot()
	if snap.State != domain.StateQuestionActive || snap.Question.Index != 1 || snap.Question.Total != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if n, err := redisClient.Exists(ctx, "question:q1").Result(); err != nil || n != 1 {
		t.Fatalf("expected question cached in redis, exists=%d err=%v", n, err)
	}

	if err := game.SubmitAnswer(ctx, alice.ID, "Ankara", 25); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	if err := game.SubmitAnswer(ctx, alice.ID, "Izmir", 20); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	if err := game.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := game.Snapshot().State; got != domain.StateReveal {
		t.Fatalf("expected REVEAL after auto-grade, got %s", got)
	}

	board, err := game.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].ContestantID != alice.ID || board[0].Score != 10 {
		t.Fatalf("expected Alice leading with 10, got %+v", board)
	}
	if board[1].ContestantID != bob.ID || board[1].Score != 0 {
		t.Fatalf("expected Bob at 0 from a synthesized empty answer, got %+v", board[1])
	}

	// Re-applying the same grade must not move the score.
	answers, err := store.ListAnswers(ctx, "q1")
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	for _, a := range answers {
		if a.ContestantID == alice.ID {
			if err := store.GradeAnswer(ctx, a.ID, true, 10); err != nil {
				t.Fatalf("re-grade: %v", err)
			}
		}
	}
	board, _ = game.Leaderboard(ctx)
	if board[0].Score != 10 {
		t.Fatalf("expected idempotent score of 10, got %d", board[0].Score)
	}

	// Migration seeds the reveal mode.
	mode, err := store.Setting(ctx, app.SettingRevealMode)
	if err != nil || mode != string(domain.RevealAuto) {
		t.Fatalf("expected seeded AUTO mode, got %q err %v", mode, err)
	}

	if err := game.ResetCompetition(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	contestants, err := store.ListContestants(ctx, "comp-1")
	if err != nil {
		t.Fatalf("list contestants: %v", err)
	}
	if len(contestants) != 0 {
		t.Fatalf("expected roster cleared, got %+v", contestants)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO questions (id, prompt, kind, choices, accepted_keys, points, duration, category, position)
		VALUES ('q1', 'What is the capital of Turkey?', 'CLOSED_FORM',
		        '["Istanbul","Ankara","Izmir"]'::jsonb, '["Ankara"]'::jsonb, 10, 30, 'Geography', 1)`); err != nil {
		t.Fatalf("seed question: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO competitions (id, name) VALUES ('comp-1', 'Spring Finals')`); err != nil {
		t.Fatalf("seed competition: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quotes (text) VALUES ('Fortune favors the prepared.')`); err != nil {
		t.Fatalf("seed quote: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
