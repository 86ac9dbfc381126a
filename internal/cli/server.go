package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	pgloader "quiz-duel-service/internal/infra/postgres"
	redisinfra "quiz-duel-service/internal/infra/redis"
	"quiz-duel-service/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the coordinator.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

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

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var source app.QuestionSource
	if redisClient != nil {
		source = redisinfra.NewQuestionBank(redisClient, loader, questionTTL)
	} else {
		source = memory.NewQuestionSource(loader, questionTTL)
	}

	var reporter app.MatchReporter = memory.NewLogReporter(logger)
	if redisClient != nil {
		reporter = redisinfra.NewMatchReporter(redisClient)
	}

	questionsPerMatch := cfg.Match.QuestionsPerMatch
	if questionsPerMatch <= 0 {
		questionsPerMatch = 5
	}

	clock := clockwork.NewRealClock()
	store := memory.NewRoomStore(clock)
	service := app.NewRoomService(store, source, questionsPerMatch, clock, logger)

	gwCfg := ws.DefaultConfig()
	gwCfg.Countdown = config.Duration(cfg.Match.Countdown, gwCfg.Countdown)
	gwCfg.QuestionTimeLimit = config.Duration(cfg.Match.QuestionTimeLimit, gwCfg.QuestionTimeLimit)
	gwCfg.QuestionPause = config.Duration(cfg.Match.QuestionPause, gwCfg.QuestionPause)
	gwCfg.RoomMaxAge = config.Duration(cfg.Match.RoomMaxAge, gwCfg.RoomMaxAge)
	gwCfg.SweepInterval = config.Duration(cfg.Match.SweepInterval, gwCfg.SweepInterval)

	gateway := ws.NewGateway(service, reporter, clock, gwCfg, logger)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go gateway.Run(runCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", gateway.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting duel coordinator")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server...")
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds a minimal bank for running without Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "q1",
			Prompt: "What is 2 + 2?",
			Choices: []domain.Choice{
				{Text: "3"}, {Text: "4"}, {Text: "5"}, {Text: "22"},
			},
			CorrectIndex: 1,
			Difficulty:   "easy",
			Points:       10,
		},
		{
			ID:     "q2",
			Prompt: "Which planet is known as the Red Planet?",
			Choices: []domain.Choice{
				{Text: "Venus"}, {Text: "Jupiter"}, {Text: "Mars"}, {Text: "Saturn"},
			},
			CorrectIndex: 2,
			Difficulty:   "easy",
			Points:       10,
		},
		{
			ID:     "q3",
			Prompt: "What is the capital of Australia?",
			Choices: []domain.Choice{
				{Text: "Sydney"}, {Text: "Melbourne"}, {Text: "Canberra"}, {Text: "Perth"},
			},
			CorrectIndex: 2,
			Difficulty:   "medium",
			Points:       15,
		},
		{
			ID:     "q4",
			Prompt: "Which element has the chemical symbol Au?",
			Choices: []domain.Choice{
				{Text: "Silver"}, {Text: "Gold"}, {Text: "Aluminium"}, {Text: "Argon"},
			},
			CorrectIndex: 1,
			Difficulty:   "medium",
			Points:       15,
		},
		{
			ID:     "q5",
			Prompt: "In what year did the Berlin Wall fall?",
			Choices: []domain.Choice{
				{Text: "1987"}, {Text: "1989"}, {Text: "1991"}, {Text: "1993"},
			},
			CorrectIndex: 1,
			Difficulty:   "hard",
			Points:       20,
		},
		{
			ID:     "q6",
			Prompt: "What is the largest ocean on Earth?",
			Choices: []domain.Choice{
				{Text: "Atlantic"}, {Text: "Indian"}, {Text: "Arctic"}, {Text: "Pacific"},
			},
			CorrectIndex: 3,
			Difficulty:   "easy",
			Points:       10,
		},
	}
}
