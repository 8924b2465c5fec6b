package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_auction/internal/logging"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/service"
	"github.com/Skotchmaster/online_auction/internal/tokens"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"

	LoginPath = "/login"
)

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*service.LoginResult, error)
}

type AutoRefreshMiddleware struct {
	JWTSecret    []byte
	Auth         Refresher
	CookieSecure bool
}

func NewAutoRefreshMiddleware(secret []byte, auth Refresher, cookieSecure bool) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:    secret,
		Auth:         auth,
		CookieSecure: cookieSecure,
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

// RequireAuth admits any logged-in user. Requests without a usable session
// are redirected to the login page.
func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("mw", "auth")

		var claims *tokens.AccessClaims
		var err error
		if accessCookie, cErr := c.Cookie(tokens.AccessCookie); cErr == nil && accessCookie.Value != "" {
			claims, err = tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
		} else {
			err = jwt.ErrTokenExpired
		}

		if err != nil {
			if !errors.Is(err, jwt.ErrTokenExpired) {
				l.Warn("auth_error", "reason", "invalid access token", "error", err)
				return m.toLogin(c)
			}
			claims, err = m.refresh(c)
			if err != nil {
				l.Info("auth_required", "reason", err.Error())
				return m.toLogin(c)
			}
		}

		if validator != nil {
			if vErr := validator(claims); vErr != nil {
				l.Warn("auth_forbidden", "status", http.StatusForbidden, "role", claims.Role)
				return vErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) refresh(c echo.Context) (*tokens.AccessClaims, error) {
	refreshCookie, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		return nil, errors.New("refresh token missing")
	}

	res, err := m.Auth.Refresh(c.Request().Context(), refreshCookie.Value)
	if err != nil {
		return nil, err
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp, m.CookieSecure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, res.RefreshToken, "/", res.RefreshExp, m.CookieSecure))

	return tokens.AccessClaimsFromToken(res.AccessToken, m.JWTSecret)
}

func (m *AutoRefreshMiddleware) toLogin(c echo.Context) error {
	ClearAuthCookies(c, m.CookieSecure)
	return c.Redirect(http.StatusSeeOther, LoginPath)
}

func ClearAuthCookies(c echo.Context, secure bool) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", secure))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", secure))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	if id, err := claims.UserID(); err == nil {
		c.Set(ctxUserID, id)
	}
	c.Set(ctxUsername, claims.Username)
	c.Set(ctxRole, claims.Role)
}

func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ctxUserID).(uint)
	return id, ok
}

func Username(c echo.Context) string {
	s, _ := c.Get(ctxUsername).(string)
	return s
}

func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}
