package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks/repository"
	"github.com/amankumarsingh77/clip-splitter/internal/worker"
	"github.com/amankumarsingh77/clip-splitter/pkg/db/redis"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	configFile := os.Getenv("CONFIG_PATH")
	if configFile == "" {
		configFile = "config.yml"
	}
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	if cfg.TaskStore.Driver == "bolt" {
		appLogger.Fatalf("taskStore.driver bolt is single-process: run cmd/server with server.embedWorker instead")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	taskRepo, store, err := repository.NewStore(cfg)
	if err != nil {
		appLogger.Fatalf("could not open task store: %v", err)
	}
	defer store.Close()

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %v", err)
	}
	defer redisClient.Close()
	appLogger.Infof("redis connected")

	w, release, err := worker.Build(ctx, cfg, appLogger, redisClient, taskRepo)
	if err != nil {
		appLogger.Fatalf("could not build worker: %v", err)
	}
	defer release()

	if err := w.Start(ctx); err != nil {
		appLogger.Fatalf("could not start worker: %v", err)
	}
	<-ctx.Done()
	appLogger.Info("Shutting down...")
	w.Stop()
}
