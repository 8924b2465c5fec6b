package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/online_auction/internal/models"
)

func withBids(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Bids", func(db *gorm.DB) *gorm.DB { return db.Order("bids.id ASC") }).
		Preload("Bids.User")
}

func (r *GormRepo) CreateAuction(ctx context.Context, a *models.Auction) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(a).Error
}

func (r *GormRepo) GetAuction(ctx context.Context, id uint) (*models.Auction, error) {
	var a models.Auction
	if err := withBids(r.DB.WithContext(ctx)).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormRepo) ListAuctions(ctx context.Context, offset, limit int) (int64, []models.Auction, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Auction{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Auction
	if err := withBids(r.DB.WithContext(ctx)).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// GetAuctionsByIDs returns the auctions in the order of ids, skipping ids
// that no longer exist.
func (r *GormRepo) GetAuctionsByIDs(ctx context.Context, ids []uint) ([]models.Auction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Auction
	if err := withBids(r.DB.WithContext(ctx)).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Auction, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]models.Auction, 0, len(found))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const descriptionLike = `LOWER(description) LIKE ? ESCAPE '\'`

// SearchAuctions matches q as a literal substring of the description.
func (r *GormRepo) SearchAuctions(ctx context.Context, q string, offset, limit int) (int64, []models.Auction, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
	base := r.DB.WithContext(ctx).Model(&models.Auction{}).Where(descriptionLike, pattern)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Auction
	if err := withBids(r.DB.WithContext(ctx)).
		Where(descriptionLike, pattern).
		Order("id ASC").Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) LockAuction(ctx context.Context, id uint) (*models.Auction, error) {
	var a models.Auction
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormRepo) UpdateAuction(ctx context.Context, a *models.Auction) error {
	res := r.DB.WithContext(ctx).Model(a).
		Select("image", "description", "end_date", "starting_price", "updated_at").
		Updates(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAuction removes the auction and its bids and returns the deleted row.
func (r *GormRepo) DeleteAuction(ctx context.Context, id uint) (*models.Auction, error) {
	var a models.Auction
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error; err != nil {
			return err
		}
		if err := tx.Where("auction_id = ?", id).Delete(&models.Bid{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Auction{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}
