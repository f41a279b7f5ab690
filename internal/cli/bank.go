package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-challenge/internal/bank"
	"quiz-challenge/internal/config"
	"quiz-challenge/internal/infra/memory"
	pgloader "quiz-challenge/internal/infra/postgres"
	rediscache "quiz-challenge/internal/infra/redis"
	"quiz-challenge/internal/logger"
	transport "quiz-challenge/internal/transport/http"
)

// NewBankCmd serves the reference question service.
func NewBankCmd(configPath, port *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Run the reference question service (fetchAll / calculateScore)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBank(cmd.Context(), *configPath, *port, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "write the configured question bank into Postgres before serving")
	return cmd
}

func runBank(ctx context.Context, configPath, portFlag string, seed bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)

	questions := bank.SampleQuestions()
	if cfg.Bank.QuestionsFile != "" {
		questions, err = bank.ReadFile(cfg.Bank.QuestionsFile)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticLoader(questions)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := pgloader.NewQuestionLoader(pool)
		if seed {
			if err := pg.SaveQuestions(ctx, questions); err != nil {
				return err
			}
			logger.Info("question bank seeded", "count", len(questions))
		}
		loader = pg
	}

	repo := newQuestionRepository(cfg, loader)
	svc := bank.NewService(repo, bank.WithSample(cfg.Bank.Sample))
	handler := transport.NewBankHandler(svc, cfg.Bank.BareList)

	finalPort := pickPort(portFlag, cfg.Bank.Port, "3000")
	logger.Info("starting question service", "port", finalPort, "sample", cfg.Bank.Sample, "bareList", cfg.Bank.BareList)
	return serve(ctx, finalPort, handler.Routes())
}

func newQuestionRepository(cfg config.Config, loader memory.QuestionLoader) bank.QuestionRepository {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return rediscache.NewQuestionRepository(client, loader, config.Duration(cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewQuestionRepository(loader, config.Duration(cfg.Bank.TTL, time.Minute))
}
