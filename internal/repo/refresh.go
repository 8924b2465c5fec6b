package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/tokens"
)

var ErrRefreshUnusable = errors.New("token expired or revoked")

func (r *GormRepo) AddRefresh(ctx context.Context, token models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(&token).Error
}

func (r *GormRepo) FindRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// RotateRefreshToken revokes oldJTI and stores newToken atomically. The old
// token must exist, be unrevoked and unexpired.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI string, newToken models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.RefreshToken
		if err := tx.Where("jti = ?", oldJTI).First(&old).Error; err != nil {
			return err
		}
		if old.Revoked || old.ExpiresAt < time.Now().Unix() {
			return ErrRefreshUnusable
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("jti = ? AND revoked = ?", oldJTI, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshUnusable
		}

		return tx.Create(&newToken).Error
	})
}

func (r *GormRepo) RevokeRefresh(ctx context.Context, refreshToken string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", tokens.Sha256Hex(refreshToken)).
		Update("revoked", true).Error
}
