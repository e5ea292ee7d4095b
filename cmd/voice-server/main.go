package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/config"
	"github.com/EasterCompany/dex-voice-rating/endpoints"
	"github.com/EasterCompany/dex-voice-rating/health"
	logger "github.com/EasterCompany/dex-voice-rating/log"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fatal error loading config: %v", err)
	}

	// 2. Initialize Logger
	if cfg.Discord.Token != "" {
		stopMirror, err := logger.Init(cfg.Discord.Token, cfg.Discord.LogChannelID)
		if err != nil {
			logger.Error("Could not mirror log to Discord", err)
		} else {
			defer stopMirror()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Cache
	db, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to initialize cache", err)
	}
	if db == nil {
		logger.Fatal("Cache is required", errors.New("cache.addr is empty"))
	}
	defer db.Close()

	// 4. Mirror client status updates into the log
	go followStatus(ctx, db)

	// 5. Serve
	checker := health.NewChecker(db, db)
	server := endpoints.NewServer(db, cfg.Server.SessionTTL(), checker.Check)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Voice rating server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", err)
	}
	log.Println("Voice rating server shut down.")
}

func followStatus(ctx context.Context, db *cache.DB) {
	sub := db.Client().Subscribe(ctx, cache.StatusChannel)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			log.Printf("[client status] %s", msg.Payload)
		}
	}
}
