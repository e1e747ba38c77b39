package http

import "github.com/labstack/echo/v4"

// Handler is implemented by anything that can mount routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
