package tasks

import "github.com/labstack/echo/v4"

type Handler interface {
	SubmitTask() echo.HandlerFunc
	GetTask() echo.HandlerFunc
}
