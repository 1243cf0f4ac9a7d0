package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/http/middleware"
)

// respondError writes {error, request_id}, omitting request_id when the
// request carries none.
func respondError(c echo.Context, status int, message string) error {
	body := map[string]string{jsonKeyError: message}
	if id := middleware.GetRequestID(c); id != "" {
		body[jsonKeyRequestID] = id
	}
	return c.JSON(status, body)
}

func respondMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{jsonKeyMessage: message})
}

func handleHTTPError(c echo.Context, err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return respondError(c, he.Code, msg)
	}

	return respondError(c, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
