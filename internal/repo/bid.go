package repo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/online_auction/internal/models"
)

// PreviousTotal is the amount of the user's latest bid on the auction, or
// zero when the user has not bid yet.
func (r *GormRepo) PreviousTotal(ctx context.Context, auctionID, userID uint) (decimal.Decimal, error) {
	var bid models.Bid
	err := r.DB.WithContext(ctx).
		Where("auction_id = ? AND user_id = ?", auctionID, userID).
		Order("id DESC").
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return bid.Amount, nil
}

// HighestBid returns the highest bid on the auction, later bids winning ties.
// ok is false when the auction has no bids.
func (r *GormRepo) HighestBid(ctx context.Context, auctionID uint) (bid models.Bid, ok bool, err error) {
	err = r.DB.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC, id DESC").
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Bid{}, false, nil
	}
	if err != nil {
		return models.Bid{}, false, err
	}
	return bid, true, nil
}

func (r *GormRepo) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(bid).Error
}

func (r *GormRepo) CountBids(ctx context.Context, auctionID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Bid{}).Where("auction_id = ?", auctionID).Count(&n).Error
	return n, err
}
