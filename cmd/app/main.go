package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cashflow/internal/adapters/cli"
	"cashflow/internal/ai"
	"cashflow/internal/app"
	"cashflow/internal/config"
	"cashflow/internal/db"
	"cashflow/internal/lock"
	"cashflow/internal/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithFields(logrus.Fields{"field": "cli"}).Error("command failed: " + err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	locker, rdb, err := lock.Connect(ctx, cfg.RedisAddress, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var agent ai.Extractor
	if cfg.AIEnabled() {
		agent = ai.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	return cli.Execute(ctx, cli.Deps{
		Service: app.NewAppService(pool, agent, locker, log),
		Migrate: func(ctx context.Context) ([]string, error) {
			return db.Migrate(ctx, pool, "migrations", log)
		},
		Out: os.Stdout,
	}, os.Args[1:])
}
