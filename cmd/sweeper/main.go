package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campusattend/internal/attendance"
	"campusattend/internal/audit"
	"campusattend/internal/config"
	"campusattend/internal/feed"
	"campusattend/internal/shift"
	"campusattend/internal/store"
	"campusattend/internal/sweeper"
)

// The sweeper daemon marks unscanned students absent once each shift's
// check-in cutoff passes. It runs alongside the API server and shares its
// database and feed.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var board feed.Feed
	if cfg.FeedBackend == "memory" {
		board = feed.NewInMemory(cfg.FeedSize)
	} else {
		board = feed.NewRedisFeed(redisClient.Client, "attendance:scanfeed", cfg.FeedSize)
	}

	repo := attendance.NewRepository(db.Client)
	settings := shift.NewSettingsStore(db.Client)
	sw := sweeper.New(repo, settings, board, audit.New(db.Client))

	// One pass at startup catches a window that closed while the daemon was
	// down, then the loop takes over.
	if _, err := sw.Run(ctx, false, "scheduler"); err != nil {
		log.Printf("startup sweep failed: %v", err)
	}
	sw.Loop(ctx, cfg.SweepInterval)
	log.Println("sweeper exited")
}
