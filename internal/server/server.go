package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/labstack/echo/v4"
)

const (
	maxHeaderBytes = 1 << 20
	ctxTimeout     = 5
)

// QueueStats is implemented by queues that can report their depth.
type QueueStats interface {
	Counts(ctx context.Context, queue string) (queue.Counts, error)
}

type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	taskRepo tasks.Repository
	queue    queue.Enqueuer
	logger   logger.Logger
}

func NewServer(cfg *config.Config, taskRepo tasks.Repository, q queue.Enqueuer, logger logger.Logger) *Server {
	return &Server{
		echo:     echo.New(),
		cfg:      cfg,
		taskRepo: taskRepo,
		queue:    q,
		logger:   logger,
	}
}

func (s *Server) Run() error {
	if err := s.MapHandlers(s.echo); err != nil {
		return err
	}

	server := &http.Server{
		Addr:           s.cfg.Server.Port,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}
	go func() {
		s.logger.Infof("server listening on %s", s.cfg.Server.Port)
		if err := s.echo.StartServer(server); err != nil && err != http.ErrServerClosed {
			s.logger.Fatalf("error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), time.Second*ctxTimeout)
	defer shutdown()
	s.logger.Infof("shutting down server")
	return server.Shutdown(ctx)
}
