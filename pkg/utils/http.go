package utils

import (
	"github.com/labstack/echo/v4"
)

func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// GetIPAddress is the client address, honouring X-Forwarded-For and X-Real-IP.
func GetIPAddress(c echo.Context) string {
	return c.RealIP()
}
