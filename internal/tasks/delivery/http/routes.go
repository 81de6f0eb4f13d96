package http

import (
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/labstack/echo/v4"
)

func MapTaskRoutes(taskGroup *echo.Group, h tasks.Handler) {
	taskGroup.POST("", h.SubmitTask())
	taskGroup.GET("/:id", h.GetTask())
}
