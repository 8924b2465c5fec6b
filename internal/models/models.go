package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "Admin"
	RoleBuyer = "Buyer"
)

// MaxMoney is the largest value a numeric(14,2) money column holds.
var MaxMoney = decimal.RequireFromString("999999999999.99")

type User struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"              json:"id"`
	Username     string          `gorm:"size:150;unique;not null"              json:"username"`
	PasswordHash string          `gorm:"size:150;not null"                     json:"-"`
	Role         string          `gorm:"size:50;not null"                      json:"role"`
	Balance      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
}

type Auction struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"        json:"id"`
	Image         string          `gorm:"size:255;not null"               json:"image"`
	Description   string          `gorm:"type:text;not null"              json:"description"`
	EndDate       time.Time       `gorm:"not null;index"                  json:"end_date"`
	StartingPrice decimal.Decimal `gorm:"type:numeric(14,2);not null"     json:"starting_price"`
	CreatedAt     time.Time       `                                       json:"created_at"`
	UpdatedAt     time.Time       `                                       json:"updated_at"`
	Bids          []Bid           `gorm:"constraint:OnDelete:CASCADE;"    json:"bids,omitempty"`
}

// Bid.Amount is the bidder's cumulative total on the auction, not the increment.
type Bid struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"            json:"id"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null"         json:"amount"`
	CreatedAt time.Time       `gorm:"not null"                            json:"timestamp"`
	AuctionID uint            `gorm:"not null;index:idx_bid_auction_user" json:"auction_id"`
	UserID    uint            `gorm:"not null;index:idx_bid_auction_user" json:"user_id"`
	User      User            `gorm:"constraint:OnDelete:CASCADE;"        json:"-"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	JTI       string `gorm:"uniqueIndex;not null" json:"jti"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	ExpiresAt int64  `gorm:"not null"             json:"expires_at"`
	Revoked   bool   `gorm:"default:false"        json:"revoked"`
}

func All() []any {
	return []any{&User{}, &Auction{}, &Bid{}, &RefreshToken{}}
}
