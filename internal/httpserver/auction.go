package httpserver

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_auction/internal/logging"
	authmw "github.com/Skotchmaster/online_auction/internal/middleware/auth"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/service"
	"github.com/Skotchmaster/online_auction/internal/transport"
	"github.com/Skotchmaster/online_auction/internal/util"
)

type AuctionHTTP struct {
	Auctions *service.AuctionService
	Bidding  *service.BiddingService
	Users    *service.UserService
}

func auctionID(c echo.Context) (uint, error) {
	id, ok := util.ParseUint(c.Param("id"))
	if !ok {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}

func pageParams(c echo.Context) (page, offset, limit int) {
	page = util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit = util.Calculate(page, size)
	return page, offset, limit
}

func bidDTOs(bids []models.Bid) []transport.BidDTO {
	out := make([]transport.BidDTO, len(bids))
	for i, b := range bids {
		out[i] = transport.BidDTO{ID: b.ID, Username: b.User.Username, Amount: b.Amount, Timestamp: b.CreatedAt}
	}
	return out
}

func (h *AuctionHTTP) AdminDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.admin")

	page, offset, limit := pageParams(c)
	total, views, err := h.Auctions.List(ctx, offset, limit)
	if err != nil {
		return httpError(l, "admin_dashboard_error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data":       views,
		"meta":       transport.NewPageMeta(page, offset, limit, total),
		"csrf_token": csrfToken(c),
	})
}

func (h *AuctionHTTP) BuyerDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.buyer")

	userID, _ := authmw.UserID(c)
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return httpError(l, "buyer_dashboard_error", err)
	}

	page, offset, limit := pageParams(c)
	total, views, err := h.Auctions.List(ctx, offset, limit)
	if err != nil {
		return httpError(l, "buyer_dashboard_error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data":       views,
		"meta":       transport.NewPageMeta(page, offset, limit, total),
		"balance":    user.Balance,
		"csrf_token": csrfToken(c),
	})
}

func (h *AuctionHTTP) CreateForm(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"fields":         []string{"description", "end_date", "starting_price", "image"},
		"allowed_images": []string{"png", "jpg", "jpeg", "gif"},
		"csrf_token":     csrfToken(c),
	})
}

// readAuctionForm binds the auction fields and opens the optional image
// part. The returned file, when non-nil, must be closed by the caller.
func readAuctionForm(c echo.Context) (service.AuctionInput, multipart.File, error) {
	var form transport.AuctionForm
	if err := c.Bind(&form); err != nil {
		return service.AuctionInput{}, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	in := service.AuctionInput{
		Description:   form.Description,
		EndDate:       form.EndDate,
		StartingPrice: form.StartingPrice.Decimal,
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return in, nil, nil
		}
		return in, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid image upload")
	}
	if fh.Filename == "" {
		return in, nil, nil
	}
	src, err := fh.Open()
	if err != nil {
		return in, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid image upload")
	}
	in.Image = &service.ImageUpload{Filename: fh.Filename, Size: fh.Size, Reader: src}
	return in, src, nil
}

func (h *AuctionHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.create")

	in, src, err := readAuctionForm(c)
	if err != nil {
		l.Warn("create_auction_error", "status", 400, "error", err)
		return err
	}
	if src != nil {
		defer src.Close()
	}

	a, err := h.Auctions.Create(ctx, in)
	if err != nil {
		return httpError(l, "create_auction_error", err)
	}

	l.Info("create_auction_success", "auction_id", a.ID)
	return c.JSON(http.StatusCreated, a)
}

func (h *AuctionHTTP) EditForm(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.edit_form")

	id, err := auctionID(c)
	if err != nil {
		return err
	}
	detail, err := h.Auctions.Get(ctx, id)
	if err != nil {
		return httpError(l, "edit_form_error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"auction":    detail.View,
		"csrf_token": csrfToken(c),
	})
}

func (h *AuctionHTTP) Edit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.edit")

	id, err := auctionID(c)
	if err != nil {
		return err
	}
	in, src, err := readAuctionForm(c)
	if err != nil {
		l.Warn("edit_auction_error", "status", 400, "error", err)
		return err
	}
	if src != nil {
		defer src.Close()
	}

	a, err := h.Auctions.Update(ctx, id, in)
	if err != nil {
		return httpError(l, "edit_auction_error", err)
	}

	l.Info("edit_auction_success", "auction_id", a.ID)
	return c.JSON(http.StatusOK, a)
}

func (h *AuctionHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.delete")

	id, err := auctionID(c)
	if err != nil {
		return err
	}
	if err := h.Auctions.Delete(ctx, id); err != nil {
		return httpError(l, "delete_auction_error", err)
	}

	l.Info("delete_auction_success", "auction_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuctionHTTP) View(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.view")

	id, err := auctionID(c)
	if err != nil {
		return err
	}
	userID, _ := authmw.UserID(c)

	detail, err := h.Auctions.Get(ctx, id)
	if err != nil {
		return httpError(l, "view_auction_error", err)
	}
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return httpError(l, "view_auction_error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"auction":    detail.View,
		"bids":       bidDTOs(detail.Auction.Bids),
		"balance":    user.Balance,
		"csrf_token": csrfToken(c),
	})
}

func (h *AuctionHTTP) PlaceBid(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.place_bid")

	id, err := auctionID(c)
	if err != nil {
		return err
	}
	userID, _ := authmw.UserID(c)

	var req transport.BidRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("place_bid_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bid amount")
	}

	bid, err := h.Bidding.PlaceBid(ctx, id, userID, req.Amount.Decimal)
	if err != nil {
		return httpError(l, "place_bid_error", err)
	}

	detail, err := h.Auctions.Get(ctx, id)
	if err != nil {
		return httpError(l, "place_bid_error", err)
	}
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return httpError(l, "place_bid_error", err)
	}

	l.Info("place_bid_success", "auction_id", id, "bid_id", bid.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"bid": transport.BidDTO{
			ID:        bid.ID,
			Username:  authmw.Username(c),
			Amount:    bid.Amount,
			Timestamp: bid.CreatedAt,
		},
		"auction": detail.View,
		"balance": user.Balance,
	})
}

func (h *AuctionHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auction.search")

	page, offset, limit := pageParams(c)
	total, views, err := h.Auctions.Search(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return httpError(l, "search_error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": views,
		"meta": transport.NewPageMeta(page, offset, limit, total),
	})
}
