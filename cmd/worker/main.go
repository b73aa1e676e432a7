// Command worker consumes complaint tasks from asynq: notification emails and
// PDF attachment extraction.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/jansevak/internal/config"
	"github.com/dharsanguruparan/jansevak/internal/database"
	"github.com/dharsanguruparan/jansevak/internal/notify"
	"github.com/dharsanguruparan/jansevak/internal/repository"
	"github.com/dharsanguruparan/jansevak/internal/s3storage"
	"github.com/dharsanguruparan/jansevak/internal/worker"
)

// processedTTL is how long a finished task id is remembered.
const processedTTL = 7 * 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Mode != config.ModeProduction {
		log.Fatalf("worker needs JANSEVAK_MODE=production; demo mode runs jobs inside the api")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	repo := repository.NewComplaintRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("connect redis: %v", err)
	}

	var mailer notify.Sender = notify.LogMailer{}
	if addr := cfg.SMTPAddr(); addr != "" {
		mailer = notify.NewSMTPMailer(addr, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(repo, store, mailer, worker.NewRedisGuard(rdb, processedTTL))
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
