package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

func RegisterRoutes(e *echo.Echo, users *UsersHandler, jobs *JobsHandler) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api/users")
	{
		g.GET("", users.List)
		g.GET("/:id", users.Get)
		g.POST("", users.Create)
		g.PUT("/:id", users.Update)
		g.DELETE("/:id", users.Delete)
	}

	if jobs != nil {
		j := e.Group("/api/jobs/:category")
		j.GET("/stats", jobs.Stats)
		j.GET("/dead-letters", jobs.DeadLetters)
	}
}
