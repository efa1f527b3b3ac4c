package api

import (
	"errors"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/labstack/echo/v4"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPErrorHandler renders every error as {"error": message} with the status
// of its kind. Unclassified errors become 500 Internal Server Error.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		} else {
			kind := custom_errors.KindOf(err)
			code = kind.Code()
			message = custom_errors.Message(err)
		}

		if code >= http.StatusInternalServerError {
			log.Error("request error",
				slog.Int("status", code),
				slog.String("path", c.Request().URL.Path),
				logger.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: message})
	}
}
