package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursebridge/config"
	"coursebridge/database"
	"coursebridge/utils"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db := database.ConnectDb(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(cfg, db, logger)
	srv.start(ctx)

	scheduler, err := utils.InitializeExpiryScheduler(cfg.ExpiryCron, srv.tracker)
	if err != nil {
		log.Fatalf("Failed to start expiry scheduler: %v", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := srv.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server is running on port %s", cfg.Port)
	if err := srv.app.Listen(":" + cfg.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	<-scheduler.Stop().Done()
	srv.stop()
}
