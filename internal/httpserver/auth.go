package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_auction/internal/logging"
	authmw "github.com/Skotchmaster/online_auction/internal/middleware/auth"
	"github.com/Skotchmaster/online_auction/internal/middleware/csrf"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/service"
	"github.com/Skotchmaster/online_auction/internal/tokens"
	"github.com/Skotchmaster/online_auction/internal/transport"
)

type AuthHTTP struct {
	Svc          *service.AuthService
	CookieSecure bool
}

func csrfToken(c echo.Context) string {
	s, _ := c.Get(csrf.ContextKey).(string)
	return s
}

func (h *AuthHTTP) RegisterForm(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"fields":     []string{"username", "password", "confirm_password", "role"},
		"roles":      []string{models.RoleAdmin, models.RoleBuyer},
		"csrf_token": csrfToken(c),
	})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, service.RegisterInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
	})
	if err != nil {
		return httpError(l, "register_error", err)
	}

	l.Info("register_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"redirect": authmw.LoginPath,
	})
}

func (h *AuthHTTP) LoginForm(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"fields":     []string{"username", "password"},
		"csrf_token": csrfToken(c),
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(l, "login_error", err)
	}
	h.setSession(c, res)

	redirect := "/buyer"
	if res.IsAdmin() {
		redirect = "/admin"
	}

	l.Info("login_success", "user_id", res.UserID)
	return c.JSON(http.StatusOK, transport.LoginResponse{
		Username: res.Username,
		Role:     res.Role,
		Redirect: redirect,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	ck, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || ck.Value == "" {
		l.Warn("refresh_error", "status", 401, "reason", "refresh token missing")
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	res, err := h.Svc.Refresh(ctx, ck.Value)
	if err != nil {
		authmw.ClearAuthCookies(c, h.CookieSecure)
		return httpError(l, "refresh_error", err)
	}
	h.setSession(c, res)

	l.Info("refresh_success", "user_id", res.UserID)
	return c.JSON(http.StatusOK, echo.Map{"access_exp": res.AccessExp.Unix()})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	authmw.ClearAuthCookies(c, h.CookieSecure)

	if ck, err := c.Cookie(tokens.RefreshCookie); err == nil {
		if err := h.Svc.LogOut(ctx, ck.Value); err != nil {
			l.Error("logout_error", "status", 500, "reason", "cannot revoke refresh token", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot log out")
		}
	}

	l.Info("logout_success")
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHTTP) setSession(c echo.Context, res *service.LoginResult) {
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp, h.CookieSecure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, res.RefreshToken, "/", res.RefreshExp, h.CookieSecure))
}
