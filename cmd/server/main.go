package main

import (
	"context"
	"log"
	"os"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/server"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks/repository"
	"github.com/amankumarsingh77/clip-splitter/internal/worker"
	"github.com/amankumarsingh77/clip-splitter/pkg/db/redis"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting server")
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

	taskRepo, store, err := repository.NewStore(cfg)
	if err != nil {
		appLogger.Fatalf("could not open task store: %v", err)
	}
	defer store.Close()
	appLogger.Infof("task store ready, driver: %s", cfg.TaskStore.Driver)

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %v", err)
	}
	defer redisClient.Close()
	appLogger.Infof("redis connected")

	if cfg.Server.EmbedWorker {
		w, release, err := worker.Build(context.Background(), cfg, appLogger, redisClient, taskRepo)
		if err != nil {
			appLogger.Fatalf("could not build worker: %v", err)
		}
		defer release()
		if err := w.Start(context.Background()); err != nil {
			appLogger.Fatalf("could not start worker: %v", err)
		}
		defer w.Stop()
		appLogger.Infof("stage workers running in the server process")
	}

	q := queue.NewRedisQueue(redisClient, cfg.Queue.Prefix, worker.QueueOptions(cfg, false), appLogger)
	s := server.NewServer(cfg, taskRepo, q, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Errorf("server stopped: %v", err)
	}
}
