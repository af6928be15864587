package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "cashflow/internal/adapters/web"
	"cashflow/internal/ai"
	"cashflow/internal/app"
	"cashflow/internal/config"
	"cashflow/internal/db"
	"cashflow/internal/lock"
	"cashflow/internal/logger"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(sigCtx, cfg.DatabaseURL)
	if err != nil {
		log.WithFields(logrus.Fields{"field": "database"}).Fatal(err)
	}
	defer pool.Close()

	locker, rdb, err := lock.Connect(sigCtx, cfg.RedisAddress, log)
	if err != nil {
		log.WithFields(logrus.Fields{"field": "redis"}).Fatal(err)
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS is not set; cross-instance locks disabled")
	}

	var agent ai.Extractor
	if cfg.AIEnabled() {
		agent = ai.NewAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		log.WithFields(logrus.Fields{"field": "ai"}).Warn("OPENAI_API_KEY is not set; invoice extraction disabled")
	}

	svc := app.NewAppService(pool, agent, locker, log)
	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	log.WithFields(logrus.Fields{"port": cfg.ServerPort}).Info("server started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	log.Info("server stopped")
}
