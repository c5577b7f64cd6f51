package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/haris936hk/EchoNote-sub001/internal/config"
	"github.com/haris936hk/EchoNote-sub001/internal/database"
	"github.com/haris936hk/EchoNote-sub001/internal/pipeline"
	"github.com/haris936hk/EchoNote-sub001/internal/queue"
	"github.com/haris936hk/EchoNote-sub001/internal/repository"
	"github.com/haris936hk/EchoNote-sub001/internal/server"
	"github.com/haris936hk/EchoNote-sub001/internal/stages"
	"github.com/haris936hk/EchoNote-sub001/internal/storage"
	httpapi "github.com/haris936hk/EchoNote-sub001/internal/transport/http"
)

func main() {
	cfg := appconfig.Load()
	slog.Info("starting echonote", "addr", cfg.HTTPAddr, "queue_mode", cfg.QueueMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	storageService, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "type", storage.GetStorageType(cfg))

	repo := repository.New(db)

	optimizer := stages.NewAudioOptimizer(cfg.AudioServiceURL, cfg.StageTimeout)
	transcriber := stages.NewTranscriber(cfg.TranscribeServiceURL, cfg.StageTimeout)
	extractor := stages.NewNLPExtractor(cfg.NLPServiceURL, cfg.StageTimeout)
	summarizer := stages.NewSummarizer(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel)
	notifier := stages.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)

	orch := pipeline.NewOrchestrator(repo, optimizer, transcriber, extractor, summarizer, notifier)

	opts := queue.Options{
		Tick:       cfg.QueueTick,
		RetryBase:  cfg.RetryBase,
		MaxRetries: cfg.MaxRetries,
		OnTerminalFailure: func(ctx context.Context, e queue.Entry, reason string) {
			meeting, err := repo.GetMeetingByID(ctx, e.MeetingID)
			if err != nil || meeting.OwnerEmail == "" {
				return
			}
			if err := notifier.NotifyFailed(ctx, meeting.OwnerEmail, meeting.Title, reason); err != nil {
				slog.Warn("failure notification not sent", "meeting_id", e.MeetingID, "err", err)
			}
		},
	}

	var (
		q           queue.Queue
		redisClient *redis.Client
	)
	switch cfg.QueueMode {
	case "redis":
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("bad redis URL", "err", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient, orch, repo, opts)
	default:
		// entries queued at shutdown are lost with the in-memory queue
		slog.Warn("using in-memory queue, pending entries do not survive restarts")
		q = queue.NewMemoryQueue(orch, repo, opts)
	}
	q.Start(ctx)

	handlers := &httpapi.Handlers{
		Q:       q,
		Repo:    repo,
		Storage: storageService,
		Redis:   redisClient,
		Config:  cfg,
	}
	r := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	_ = q.Close()
	cancel()
}
