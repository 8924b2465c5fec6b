package transport

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount bindable from JSON numbers, JSON strings and
// form values.
type Money struct {
	decimal.Decimal
}

func (m *Money) UnmarshalParam(param string) error {
	param = strings.TrimSpace(param)
	if param == "" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(param)
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}

type RegisterRequest struct {
	Username        string `json:"username"         form:"username"`
	Password        string `json:"password"         form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	Role            string `json:"role"             form:"role"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type AuctionForm struct {
	Description   string `json:"description"    form:"description"`
	EndDate       string `json:"end_date"       form:"end_date"`
	StartingPrice Money  `json:"starting_price" form:"starting_price"`
}

type BidRequest struct {
	Amount Money `json:"bid_amount" form:"bid_amount"`
}

type AddMoneyRequest struct {
	Amount Money `json:"amount" form:"amount"`
}

type AddMoneyResponse struct {
	Success    bool            `json:"success"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

type LoginResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Redirect string `json:"redirect"`
}

type UserDTO struct {
	ID       uint            `json:"id"`
	Username string          `json:"username"`
	Role     string          `json:"role"`
	Balance  decimal.Decimal `json:"balance"`
}

type BidDTO struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewPageMeta(page, offset, limit int, total int64) PageMeta {
	if page < 1 {
		page = 1
	}
	return PageMeta{
		Page:       page,
		Size:       limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		HasPrev:    page > 1,
		HasNext:    int64(offset+limit) < total,
	}
}
