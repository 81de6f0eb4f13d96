package server

import (
	"net/http"

	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	taskHttp "github.com/amankumarsingh77/clip-splitter/internal/tasks/delivery/http"
	taskUsecase "github.com/amankumarsingh77/clip-splitter/internal/tasks/usecase"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) MapHandlers(e *echo.Echo) error {
	taskUC := taskUsecase.NewTaskUseCase(s.cfg, s.taskRepo, s.queue, s.logger)
	taskHandlers := taskHttp.NewTaskHandler(taskUC, s.logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	if s.cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(s.cfg.Server.BodyLimit))
	}

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	taskGroup := v1.Group("/tasks")

	taskHttp.MapTaskRoutes(taskGroup, taskHandlers)
	health.GET("", s.health)
	return nil
}

func (s *Server) health(c echo.Context) error {
	s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
	body := map[string]interface{}{"status": "OK"}
	if stats, ok := s.queue.(QueueStats); ok {
		counts := map[string]queue.Counts{}
		for _, name := range []string{queue.Extract, queue.Transcribe, queue.Split} {
			n, err := stats.Counts(c.Request().Context(), name)
			if err != nil {
				s.logger.Warnf("Health check counts %s error: %v", name, err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "queue unavailable"})
			}
			counts[name] = n
		}
		body["queues"] = counts
	}
	return c.JSON(http.StatusOK, body)
}
