package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_auction/internal/service"
)

// httpError maps service errors onto HTTP statuses and logs the failure
// under event.
func httpError(l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		msg := reason(err, service.ErrValidation)
		l.Warn(event, "status", http.StatusBadRequest, "reason", msg)
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", http.StatusNotFound, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		msg := reason(err, service.ErrConflict)
		l.Warn(event, "status", http.StatusConflict, "reason", msg)
		return echo.NewHTTPError(http.StatusConflict, msg)
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		l.Warn(event, "status", http.StatusUnauthorized, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case service.IsBidRejection(err):
		l.Info(event, "status", http.StatusUnprocessableEntity, "reason", err.Error())
		return echo.NewHTTPError(http.StatusUnprocessableEntity, echo.Map{
			"message": "bid rejected",
			"reason":  err.Error(),
		})
	default:
		l.Error(event, "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func reason(err, sentinel error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
}
