package main

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks/repository"
	"github.com/amankumarsingh77/clip-splitter/internal/worker"
	"github.com/amankumarsingh77/clip-splitter/pkg/db/redis"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/joho/godotenv"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     logger.Logger
}

type backend struct {
	cfg    *config.Config
	logger logger.Logger
	store  tasks.Repository
	queue  *queue.RedisQueue
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("load .env: %v", err)
		}
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = "config.yml"
		}
		v, err := config.LoadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.ParseConfig(v)
		if err != nil {
			c.configErr = err
			return
		}
		appLogger := logger.NewApiLogger(cfg)
		appLogger.InitLogger()
		c.config = cfg
		c.logger = appLogger
	})
	return c.config, c.configErr
}

// withBackend opens the task store and queue for the duration of fn.
func (c *commandContext) withBackend(fn func(b *backend) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, closer, err := repository.NewStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	return fn(&backend{
		cfg:    cfg,
		logger: c.logger,
		store:  store,
		queue:  queue.NewRedisQueue(redisClient, cfg.Queue.Prefix, worker.QueueOptions(cfg, false), c.logger),
	})
}
