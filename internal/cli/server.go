package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-competition-service/internal/app"
	"trivia-competition-service/internal/config"
	"trivia-competition-service/internal/domain"
	"trivia-competition-service/internal/infra/memory"
	pgstore "trivia-competition-service/internal/infra/postgres"
	rediscache "trivia-competition-service/internal/infra/redis"
	"trivia-competition-service/internal/logging"
	"trivia-competition-service/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the competition server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New("trivia-competition-service", cfg.Logging.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store app.Store
	var questions app.QuestionBank
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := pgstore.NewStore(pool)
		store = pg
		questions = pg
	} else {
		mem := sampleStore()
		store = mem
		questions = mem
		log.Warn("postgres not configured, using in-memory store with sample data")
	}

	if redisClient != nil {
		ttl := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
		questions = rediscache.NewQuestionCache(redisClient, questions, ttl)
	}

	hub := ws.NewHub(log)
	registry := app.NewRegistry(store, questions, hub, log)
	handler := ws.NewHandler(registry, hub, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", handler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting competition service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleStore seeds a minimal competition so the service is usable without
// Postgres; swap in the real store for production.
func sampleStore() *memory.Store {
	store := memory.NewStore()
	store.SeedQuestions([]domain.Question{
		{
			ID:           "q1",
			Prompt:       "What is the capital of Turkey?",
			Kind:         domain.ClosedForm,
			Choices:      []string{"Istanbul", "Ankara", "Izmir", "Bursa"},
			AcceptedKeys: []string{"Ankara"},
			Points:       10,
			Duration:     30,
			Category:     "Geography",
		},
		{
			ID:           "q2",
			Prompt:       "Which strait separates Europe and Asia in Turkey?",
			Kind:         domain.OpenForm,
			AcceptedKeys: []string{"Bosphorus", "Bosporus"},
			Points:       20,
			Duration:     45,
			Category:     "Geography",
		},
	})
	store.SeedQuotes([]string{
		"Knowledge speaks, but wisdom listens.",
		"The beautiful thing about learning is that no one can take it away from you.",
	})
	store.SeedCompetitions([]domain.Competition{
		{ID: "comp-1", Name: "Friday Night Trivia", Status: "ACTIVE"},
	})
	store.SetSetting(app.SettingRevealMode, string(domain.RevealAuto))
	return store
}
