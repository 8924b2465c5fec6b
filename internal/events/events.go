package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicUsers    = "user_events"
	TopicAuctions = "auction_events"
	TopicBids     = "bid_events"
)

const (
	UserRegistered = "user_registered"
	BalanceAdded   = "balance_added"
	AuctionCreated = "auction_created"
	AuctionUpdated = "auction_updated"
	AuctionDeleted = "auction_deleted"
	BidPlaced      = "bid_placed"
)

func Topics() []string {
	return []string{TopicUsers, TopicAuctions, TopicBids}
}

//go:generate mockgen -destination=mock_publisher.go -package=events github.com/Skotchmaster/online_auction/internal/events Publisher

// Publisher delivers domain events keyed for partitioning. Callers treat
// delivery as best effort once the database change has committed.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
	Close() error
}

type UserEvent struct {
	Type     string          `json:"type"`
	UserID   uint            `json:"user_id"`
	Username string          `json:"username,omitempty"`
	Role     string          `json:"role,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
	At       time.Time       `json:"at"`
}

type AuctionEvent struct {
	Type          string          `json:"type"`
	AuctionID     uint            `json:"auction_id"`
	Description   string          `json:"description,omitempty"`
	EndDate       time.Time       `json:"end_date"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	At            time.Time       `json:"at"`
}

type BidEvent struct {
	Type      string          `json:"type"`
	BidID     uint            `json:"bid_id"`
	AuctionID uint            `json:"auction_id"`
	UserID    uint            `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Increment decimal.Decimal `json:"increment"`
	At        time.Time       `json:"at"`
}

type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                            { return nil }
