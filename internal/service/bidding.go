package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/events"
	"github.com/Skotchmaster/online_auction/internal/logging"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/repo"
)

type BiddingService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
	Now    func() time.Time
}

func (s *BiddingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// PlaceBid raises the user's cumulative bid on the auction by increment.
// The new total must exceed the highest bid (or the starting price when there
// are none) and the user's balance must cover the increment. The bid row and
// the balance debit commit together or not at all.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, userID uint, increment decimal.Decimal) (*models.Bid, error) {
	l := logging.FromContext(ctx).With("svc", "bidding.place", "auction_id", auctionID, "user_id", userID)

	increment = increment.Round(2)
	if !increment.IsPositive() {
		return nil, fmt.Errorf("bid amount must be positive: %w", ErrValidation)
	}
	if increment.GreaterThan(models.MaxMoney) {
		return nil, fmt.Errorf("bid amount exceeds %s: %w", models.MaxMoney.StringFixed(2), ErrValidation)
	}

	now := s.now()
	var bid models.Bid
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		auction, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("auction %d: %w", auctionID, ErrNotFound)
			}
			return err
		}
		if auction.EndDate.Before(now) {
			return ErrAuctionEnded
		}

		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d: %w", userID, ErrNotFound)
			}
			return err
		}

		previous, err := tx.PreviousTotal(ctx, auctionID, userID)
		if err != nil {
			return err
		}
		total := previous.Add(increment)
		if total.GreaterThan(models.MaxMoney) {
			return fmt.Errorf("total exceeds %s: %w", models.MaxMoney.StringFixed(2), ErrValidation)
		}

		highest := auction.StartingPrice
		top, ok, err := tx.HighestBid(ctx, auctionID)
		if err != nil {
			return err
		}
		if ok {
			highest = top.Amount
		}

		if total.LessThanOrEqual(highest) {
			return fmt.Errorf("total %s does not exceed %s: %w", total.StringFixed(2), highest.StringFixed(2), ErrBidTooLow)
		}
		if user.Balance.LessThan(increment) {
			return ErrInsufficientFunds
		}

		bid = models.Bid{
			Amount:    total,
			CreatedAt: now,
			AuctionID: auctionID,
			UserID:    userID,
		}
		if err := tx.CreateBid(ctx, &bid); err != nil {
			return err
		}
		return tx.SetBalance(ctx, userID, user.Balance.Sub(increment))
	})
	if err != nil {
		if IsBidRejection(err) {
			l.Info("bid_rejected", "status", 422, "reason", err.Error())
		} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrValidation) {
			l.Error("place_bid_error", "status", 500, "error", err)
		}
		return nil, err
	}

	l.Info("bid_placed", "bid_id", bid.ID, "amount", bid.Amount.String(), "increment", increment.String())

	if s.Events != nil {
		if err := s.Events.PublishEvent(ctx, events.TopicBids, fmt.Sprint(auctionID), events.BidEvent{
			Type:      events.BidPlaced,
			BidID:     bid.ID,
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    bid.Amount,
			Increment: increment,
			At:        now,
		}); err != nil {
			l.Warn("publish_error", "topic", events.TopicBids, "error", err)
		}
	}
	return &bid, nil
}
