package main

import (
	"context"
	stdlog "log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/lang-repetitor/internal/compiler"
	"github.com/MimeLyc/lang-repetitor/internal/config"
	"github.com/MimeLyc/lang-repetitor/internal/jobs"
	"github.com/MimeLyc/lang-repetitor/internal/persistence"
	"github.com/MimeLyc/lang-repetitor/internal/service"
	"github.com/MimeLyc/lang-repetitor/internal/speechapi"
	"github.com/MimeLyc/lang-repetitor/internal/ttscache"
	"github.com/MimeLyc/lang-repetitor/pkg/log"
)

func main() {
	// A missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		stdlog.Fatal("Failed to load configuration: ", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Service.LogLevel))

	speech, err := speechapi.NewClient(&speechapi.Config{
		APIURL:  cfg.Speech.APIURL,
		APIKey:  cfg.Speech.APIKey,
		Timeout: cfg.Speech.Timeout,
	})
	if err != nil {
		stdlog.Fatal("Failed to create speech client: ", err)
	}

	cache, err := ttscache.Open(cfg.Storage.CacheDir, speech, cfg.Runtime)
	if err != nil {
		stdlog.Fatal("Failed to open synthesis cache: ", err)
	}
	defer cache.Close()

	store, err := persistence.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, "repetitor.db"))
	if err != nil {
		stdlog.Fatal("Failed to open job store: ", err)
	}
	defer store.Close()

	comp := compiler.New(*cfg, compiler.Capabilities{
		Detector:    speech,
		Transcriber: speech,
		Translator:  speech,
		Resolver:    cache,
	})

	queue := jobs.NewQueue(cfg.Service.WorkerCount, store)
	defer queue.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	svc := service.NewLibraryService(*cfg, comp, queue, store, c)
	if err := svc.Schedule(ctx); err != nil {
		stdlog.Fatal("Failed to schedule library service: ", err)
	}
	c.Start()
	defer c.Stop()

	// First pass right away so a fresh library compiles without waiting
	// for the cron tick.
	if err := svc.Scan(ctx); err != nil {
		log.Error("Initial library scan failed: %v", err)
	}

	<-ctx.Done()
	log.Info("Shutting down")
}
