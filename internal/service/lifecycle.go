package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/online_auction/internal/models"
)

type AuctionView struct {
	ID            uint            `json:"id"`
	Image         string          `json:"image"`
	Description   string          `json:"description"`
	EndDate       time.Time       `json:"end_date"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	HighestBid    decimal.Decimal `json:"highest_bid"`
	BidCount      int             `json:"bid_count"`
	HasEnded      bool            `json:"has_ended"`
	Winner        *string         `json:"winner"`
}

// Evaluate derives the display state of an auction at now from its bids.
// The end instant itself still counts as open. Equal amounts resolve to the
// later bid. Bids must carry their User for the winner to be named.
func Evaluate(a models.Auction, now time.Time) AuctionView {
	v := AuctionView{
		ID:            a.ID,
		Image:         a.Image,
		Description:   a.Description,
		EndDate:       a.EndDate,
		StartingPrice: a.StartingPrice,
		HighestBid:    a.StartingPrice,
		BidCount:      len(a.Bids),
		HasEnded:      a.EndDate.Before(now),
	}

	var top *models.Bid
	for i := range a.Bids {
		if top == nil || a.Bids[i].Amount.GreaterThanOrEqual(top.Amount) {
			top = &a.Bids[i]
		}
	}
	if top == nil {
		return v
	}

	v.HighestBid = top.Amount
	if v.HasEnded && top.User.Username != "" {
		name := top.User.Username
		v.Winner = &name
	}
	return v
}

func EvaluateAll(items []models.Auction, now time.Time) []AuctionView {
	out := make([]AuctionView, len(items))
	for i, a := range items {
		out[i] = Evaluate(a, now)
	}
	return out
}
