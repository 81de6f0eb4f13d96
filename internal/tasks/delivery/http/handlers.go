package http

import (
	"errors"
	"net/http"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
	"github.com/labstack/echo/v4"
)

const uploadField = "video"

type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type taskHandler struct {
	taskUC tasks.UseCase
	logger logger.Logger
}

func NewTaskHandler(taskUC tasks.UseCase, logger logger.Logger) tasks.Handler {
	return &taskHandler{
		taskUC: taskUC,
		logger: logger,
	}
}

func (h *taskHandler) SubmitTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile(uploadField)
		if err != nil {
			return c.JSON(http.StatusBadRequest, response{Error: "video file is required"})
		}
		file, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, response{Error: "could not read upload"})
		}
		defer file.Close()

		input := &models.SubmitInput{
			Filename: fh.Filename,
			MimeType: fh.Header.Get(echo.HeaderContentType),
			Encoding: fh.Header.Get("Content-Transfer-Encoding"),
			Size:     fh.Size,
		}
		task, err := h.taskUC.Submit(c.Request().Context(), input, file)
		if err != nil {
			if errors.Is(err, tasks.ErrInvalidInput) {
				return c.JSON(http.StatusBadRequest, response{Error: "only video files are accepted"})
			}
			h.logger.Errorf("SubmitTask RequestID: %s error: %v", utils.GetRequestID(c), err)
			return c.JSON(http.StatusInternalServerError, response{Error: err.Error()})
		}
		h.logger.Infof("SubmitTask RequestID: %s IP: %s task %s created for %s",
			utils.GetRequestID(c), utils.GetIPAddress(c), task.ID, input.Filename)
		return c.JSON(http.StatusCreated, response{
			Success: true,
			Message: "task created successfully",
			Data:    map[string]string{"taskId": task.ID},
		})
	}
}

func (h *taskHandler) GetTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := h.taskUC.GetTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				return c.JSON(http.StatusNotFound, response{Error: "task not found"})
			}
			h.logger.Errorf("GetTask RequestID: %s error: %v", utils.GetRequestID(c), err)
			return c.JSON(http.StatusInternalServerError, response{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, response{Success: task != nil, Data: task})
	}
}
