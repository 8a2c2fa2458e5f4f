package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	pginfra "assessment-service/internal/infra/postgres"
	redisinfra "assessment-service/internal/infra/redis"
	transport "assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
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
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	boardTTL := config.TTLDuration(cfg.Leaderboard.TTL, time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		sessionStore app.SessionStore
		challenges   app.ChallengeStore
		templates    app.TemplateStore
		profiles     app.ProfileStore
		streaks      app.StreakStore
		questions    app.QuestionPool
	)
	if pool != nil {
		sessionStore = pginfra.NewSessionStore(pool)
		challenges = pginfra.NewChallengeStore(pool)
		templates = pginfra.NewTemplateStore(pool)
		profiles = pginfra.NewProfileStore(pool)
		streaks = pginfra.NewStreakStore(pool)
		questions = pginfra.NewQuestionPool(pool)
	} else {
		log.Printf("postgres not configured, running with in-memory stores and demo data")
		profileStore := memory.NewProfileStore()
		sessionStore = memory.NewSessionStore(profileStore)
		challengeStore := memory.NewChallengeStore()
		templateStore := memory.NewTemplateStore()
		challenges = challengeStore
		templates = templateStore
		profiles = profileStore
		streaks = memory.NewStreakStore()
		questions = memory.NewQuestionPool(sampleQuestions())
		seedDemoChallenge(ctx, challengeStore, templateStore)
	}

	if redisClient != nil {
		questions = redisinfra.NewQuestionCache(redisClient, questions, questionTTL)
	}
	var boardCache app.LeaderboardCache
	if redisClient != nil {
		boardCache = redisinfra.NewLeaderboardCache(redisClient, boardTTL)
	} else {
		boardCache = memory.NewLeaderboardCache(boardTTL)
	}

	hub := app.NewLeaderboardHub()
	sessionSvc := app.NewSessionService(sessionStore, questions, templates)
	challengeSvc := app.NewChallengeService(challenges, templates, profiles, sessionSvc, sessionStore, boardCache, hub)
	streakSvc := app.NewStreakService(streaks)

	apiHandler := transport.NewAPIHandler(sessionSvc, challengeSvc, streakSvc)
	wsHandler := transport.NewWSHandler(challengeSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	apiHandler.Register(mux)
	mux.HandleFunc("GET /ws/challenges/{date}", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides demo pool content for the database-less mode.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: "q-capital-fr", TopicID: "geography", Kind: domain.FreeText,
			Prompt:        "What is the capital of France?",
			AcceptedTexts: []string{"Paris"},
			Points:        10, Active: true, Reviewed: true,
		},
		{
			ID: "q-sum", TopicID: "math", Kind: domain.SingleChoice,
			Prompt: "What is 2 + 2?",
			Options: []domain.Option{
				{ID: "o1", Text: "3"},
				{ID: "o2", Text: "4", Correct: true},
				{ID: "o3", Text: "5"},
			},
			Points: 10, Active: true, Reviewed: true,
		},
		{
			ID: "q-primes", TopicID: "math", Kind: domain.MultiChoice,
			Prompt: "Select all prime numbers.",
			Options: []domain.Option{
				{ID: "o1", Text: "2", Correct: true},
				{ID: "o2", Text: "3", Correct: true},
				{ID: "o3", Text: "4"},
			},
			Points: 10, Active: true, Reviewed: true,
		},
	}
}

func seedDemoChallenge(ctx context.Context, challenges *memory.ChallengeStore, templates *memory.TemplateStore) {
	tmpl := &domain.AssessmentTemplate{
		ID:                "tmpl-daily",
		Name:              "Daily Challenge",
		Kind:              domain.KindDailyChallenge,
		QuestionLimit:     3,
		FeedbackAfterEach: true,
		StartingLives:     3,
	}
	if err := templates.PutTemplate(ctx, tmpl); err != nil {
		log.Printf("seed template: %v", err)
	}
	ch := &domain.DailyChallenge{
		ID:          "challenge-demo",
		Date:        domain.Day(time.Now()),
		TemplateID:  tmpl.ID,
		QuestionIDs: []string{"q-capital-fr", "q-sum", "q-primes"},
	}
	if err := challenges.PutChallenge(ctx, ch); err != nil {
		log.Printf("seed challenge: %v", err)
	}
}
