// Command server runs the JanSevak HTTP API. JANSEVAK_MODE picks between the
// self-contained demo wiring and the Postgres/MinIO/asynq production wiring.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/jansevak/internal/api"
	"github.com/dharsanguruparan/jansevak/internal/attachment"
	"github.com/dharsanguruparan/jansevak/internal/auth"
	"github.com/dharsanguruparan/jansevak/internal/complaint"
	"github.com/dharsanguruparan/jansevak/internal/config"
	"github.com/dharsanguruparan/jansevak/internal/database"
	"github.com/dharsanguruparan/jansevak/internal/notify"
	"github.com/dharsanguruparan/jansevak/internal/processing"
	"github.com/dharsanguruparan/jansevak/internal/queue"
	"github.com/dharsanguruparan/jansevak/internal/repository"
	"github.com/dharsanguruparan/jansevak/internal/s3storage"
	"github.com/dharsanguruparan/jansevak/internal/signing"
	"github.com/dharsanguruparan/jansevak/internal/storage"
	"github.com/dharsanguruparan/jansevak/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	opts := api.Options{
		Address: cfg.Address,
		Limits: attachment.Limits{
			MaxBytes:     cfg.MaxFileSize,
			AllowedTypes: cfg.AllowedTypes,
		},
	}

	var (
		cleanup     func()
		revocations auth.Revocations
	)
	switch cfg.Mode {
	case config.ModeProduction:
		cleanup, revocations, err = wireProduction(ctx, cfg, &opts)
	default:
		cleanup, revocations, err = wireDemo(ctx, cfg, &opts)
	}
	if err != nil {
		log.Fatalf("init %s mode: %v", cfg.Mode, err)
	}
	defer cleanup()

	jwtAuth := auth.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, auth.WithRevocations(revocations))
	opts.Auth = jwtAuth
	opts.Revoker = jwtAuth
	if opts.Directory != nil {
		opts.Issuer = jwtAuth
	}

	log.Printf("jansevak api starting in %s mode", cfg.Mode)
	if err := api.New(opts).Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		cleanup()
		os.Exit(1)
	}
}

// wireDemo keeps everything in this process: memory store, files on disk and
// notifications on a goroutine pool.
func wireDemo(ctx context.Context, cfg *config.Config, opts *api.Options) (func(), auth.Revocations, error) {
	store := storage.NewMemoryStore()
	files, err := attachment.NewDiskStore(cfg.UploadDir, signing.NewSigner(cfg.SigningSecret), cfg.SignedURLTTL, api.FilesPath)
	if err != nil {
		return nil, nil, err
	}
	directory, err := auth.NewDirectory(cfg.DemoUsers)
	if err != nil {
		return nil, nil, err
	}
	processor := worker.NewProcessor(store, files, newMailer(cfg), nil)
	pool := processing.New(processor, cfg.Workers)
	pool.Start(ctx)

	opts.Service = complaint.NewService(store, complaint.WithNotifier(pool))
	opts.Attachments = files
	opts.Files = files
	opts.Directory = directory
	return func() {}, auth.NewMemoryRevocations(), nil
}

// wireProduction stores complaints in Postgres, attachments in MinIO and
// hands notifications to the asynq worker. Logged-out tokens live in Redis so
// every API instance sees them.
func wireProduction(ctx context.Context, cfg *config.Config, opts *api.Options) (func(), auth.Revocations, error) {
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	objects, err := s3storage.New(cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		pool.Close()
		return nil, nil, err
	}
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	repo := repository.NewComplaintRepository(pool)
	opts.Service = complaint.NewService(repo, complaint.WithNotifier(queue.NewClient(client)))
	opts.Attachments = objects
	return func() {
		if err := client.Close(); err != nil {
			log.Printf("close queue client: %v", err)
		}
		rdb.Close()
		pool.Close()
	}, auth.NewRedisRevocations(rdb), nil
}

func newMailer(cfg *config.Config) notify.Sender {
	if addr := cfg.SMTPAddr(); addr != "" {
		return notify.NewSMTPMailer(addr, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}
	return notify.LogMailer{}
}
