package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/online_auction/internal/middleware/auth"
)

type Deps struct {
	Auth     *AuthHTTP
	Auctions *AuctionHTTP
	Users    *UserHTTP
	AuthMW   *authmw.AutoRefreshMiddleware
	Ready    func(ctx context.Context) error
}

// Register mounts every route with its capability: public, authenticated
// or admin. Capability checks run before the handler.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/", index)
	e.GET("/register", d.Auth.RegisterForm)
	e.POST("/register", d.Auth.Register)
	e.GET("/login", d.Auth.LoginForm)
	e.POST("/login", d.Auth.Login)
	e.GET("/logout", d.Auth.LogOut)
	e.POST("/refresh", d.Auth.Refresh)

	authed := d.AuthMW.RequireAuth
	e.GET("/buyer", d.Auctions.BuyerDashboard, authed)
	e.GET("/view_auction/:id", d.Auctions.View, authed)
	e.POST("/view_auction/:id", d.Auctions.PlaceBid, authed)
	e.POST("/add_money", d.Users.AddMoney, authed)
	e.GET("/search", d.Auctions.Search, authed)

	admin := d.AuthMW.RequireAdmin
	e.GET("/users", d.Users.ListUsers, admin)
	e.GET("/admin", d.Auctions.AdminDashboard, admin)
	e.GET("/create_auction", d.Auctions.CreateForm, admin)
	e.POST("/create_auction", d.Auctions.Create, admin)
	e.GET("/edit_auction/:id", d.Auctions.EditForm, admin)
	e.POST("/edit_auction/:id", d.Auctions.Edit, admin)
	e.POST("/delete_auction/:id", d.Auctions.Delete, admin)
}

func index(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"service": "auction",
		"links": echo.Map{
			"login":    "/login",
			"register": "/register",
			"buyer":    "/buyer",
			"admin":    "/admin",
		},
	})
}
