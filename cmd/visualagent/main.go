package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yukawasensei/visual-ai-agent/internal/analysis"
	"github.com/yukawasensei/visual-ai-agent/internal/api"
	"github.com/yukawasensei/visual-ai-agent/internal/classifier"
	"github.com/yukawasensei/visual-ai-agent/internal/config"
	"github.com/yukawasensei/visual-ai-agent/internal/db"
	"github.com/yukawasensei/visual-ai-agent/internal/ffmpeg"
	"github.com/yukawasensei/visual-ai-agent/internal/jobs"
	"github.com/yukawasensei/visual-ai-agent/internal/scheduler"
	"github.com/yukawasensei/visual-ai-agent/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("visual-ai-agent %s starting...", ver.Version)

	cfg := config.Load()

	for _, dir := range []string{cfg.UploadDir, cfg.ExportDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("create data dir %s: %v", dir, err)
		}
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, "migrations"); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	queue := jobs.NewQueue(cfg.RedisAddr)
	srv := api.NewServer(cfg, database, queue)

	fc, err := classifier.NewGeminiClassifier(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("classifier init failed: %v", err)
	}
	sampler := ffmpeg.NewSampler(cfg.FFmpegPath, ffmpeg.NewFFprobe(cfg.FFprobePath), cfg.TempDir)
	analyzer := analysis.NewAnalyzer(sampler, fc, analysis.Options{
		FrameInterval:  cfg.FrameInterval,
		MaxFrames:      cfg.MaxFrames,
		Workers:        cfg.ClassifyWorkers,
		Timeout:        cfg.ClassifyTimeout,
		RequestsPerSec: cfg.ClassifyRPS,
		MergeThreshold: cfg.MergeThreshold,
	})

	jobs.RegisterHandlers(queue, analyzer, srv.VideoRepo(), srv.SegmentRepo(), srv.WSHub())
	if err := queue.Start(context.Background()); err != nil {
		log.Fatalf("job queue start failed: %v", err)
	}
	defer queue.Stop()

	sweeper := scheduler.New(cfg.ExportDir, cfg.TempDir, cfg.ExportRetention)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("scheduler start failed: %v", err)
	}
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}
