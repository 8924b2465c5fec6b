package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_auction/internal/logging"
	authmw "github.com/Skotchmaster/online_auction/internal/middleware/auth"
	"github.com/Skotchmaster/online_auction/internal/service"
	"github.com/Skotchmaster/online_auction/internal/transport"
)

type UserHTTP struct {
	Svc *service.UserService
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.list")

	page, offset, limit := pageParams(c)
	total, users, err := h.Svc.List(ctx, offset, limit)
	if err != nil {
		return httpError(l, "list_users_error", err)
	}

	out := make([]transport.UserDTO, len(users))
	for i, u := range users {
		out[i] = transport.UserDTO{ID: u.ID, Username: u.Username, Role: u.Role, Balance: u.Balance}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": out,
		"meta": transport.NewPageMeta(page, offset, limit, total),
	})
}

func (h *UserHTTP) AddMoney(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.add_money")

	var req transport.AddMoneyRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_money_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}

	userID, _ := authmw.UserID(c)
	balance, err := h.Svc.AddMoney(ctx, userID, req.Amount.Decimal)
	if err != nil {
		return httpError(l, "add_money_error", err)
	}

	return c.JSON(http.StatusOK, transport.AddMoneyResponse{Success: true, NewBalance: balance})
}
