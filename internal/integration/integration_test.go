package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	pgloader "quiz-duel-service/internal/infra/postgres"
	pgmigrations "quiz-duel-service/internal/infra/postgres/migrations"
	redisinfra "quiz-duel-service/internal/infra/redis"
)

func TestDuelEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgloader.NewQuestionLoader(pool)
	source := redisinfra.NewQuestionBank(redisClient, loader, 5*time.Minute)
	reporter := redisinfra.NewMatchReporter(redisClient)

	clock := clockwork.NewRealClock()
	store := memory.NewRoomStore(clock)
	service := app.NewRoomService(store, source, 2, clock, zerolog.Nop())

	snapshot, err := service.Create(ctx, "h1", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	code := snapshot.Code
	if _, err := service.Join(ctx, code, "g1", "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := service.Start(ctx, code, "h1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := service.BeginFirstQuestion(code); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// Play both questions. The seeded bank puts every correct answer at
	// index 1, so the random pick order does not matter: alice always
	// answers 1, bob always 0.
	var result *domain.MatchResult
	for i := 0; i < 2; i++ {
		if _, err := service.SubmitAnswer(code, "h1", i, 1); err != nil {
			t.Fatalf("alice submit q%d: %v", i+1, err)
		}
		if _, err := service.SubmitAnswer(code, "g1", i, 0); err != nil {
			t.Fatalf("bob submit q%d: %v", i+1, err)
		}
		adv, err := service.Advance(code)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if adv.Finished {
			result = adv.Result
		}
	}
	if result == nil || result.Winner != "alice" {
		t.Fatalf("expected alice to win, got %+v", result)
	}

	for _, player := range result.PlayerResults(app.MatchMode) {
		if err := reporter.Report(ctx, player); err != nil {
			t.Fatalf("report %s: %v", player.Username, err)
		}
	}

	rating, err := redisClient.HGet(ctx, "player:alice:stats", "rating").Result()
	if err != nil {
		t.Fatalf("read alice rating: %v", err)
	}
	if rating != "25" {
		t.Fatalf("expected alice rating 25, got %q", rating)
	}
	losses, err := redisClient.HGet(ctx, "player:bob:stats", "losses").Result()
	if err != nil {
		t.Fatalf("read bob losses: %v", err)
	}
	if losses != "1" {
		t.Fatalf("expected bob at 1 loss, got %q", losses)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "duel", "POSTGRES_PASSWORD": "duelpass", "POSTGRES_DB": "dueldb"},
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
	dsn := fmt.Sprintf("postgres://duel:duelpass@%s:%s/dueldb?sslmode=disable", host, port.Port())
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

func seedQuestions(t *testing.T, ctx context.Context, dsn string, bank []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range bank {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "What is 2 + 2?", Choices: []domain.Choice{{Text: "3"}, {Text: "4"}}, CorrectIndex: 1, Difficulty: "easy", Points: 10},
		{ID: "q2", Prompt: "Largest ocean?", Choices: []domain.Choice{{Text: "Atlantic"}, {Text: "Pacific"}}, CorrectIndex: 1, Difficulty: "easy", Points: 20},
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
