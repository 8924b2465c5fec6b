package repo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/online_auction/internal/models"
)

var ErrUserAlreadyExist = errors.New("user already exist")

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("username = ?", u.Username).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrUserAlreadyExist
	}
	return nil
}

func (r *GormRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var users []models.User
	if err := r.DB.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return 0, nil, err
	}
	return total, users, nil
}

// LockUser reads the user row with a row lock held until the surrounding
// transaction ends.
func (r *GormRepo) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

var ErrBalanceOverflow = errors.New("balance overflow")

// SetBalance writes balance as computed by the caller. The caller holds the
// row lock from LockUser so the value it was derived from is still current.
func (r *GormRepo) SetBalance(ctx context.Context, id uint, balance decimal.Decimal) error {
	balance = balance.Round(2)
	if balance.GreaterThan(models.MaxMoney) {
		return ErrBalanceOverflow
	}
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddBalance credits amount under a row lock. The sum is computed in Go so
// money never goes through float arithmetic in the database.
func (r *GormRepo) AddBalance(ctx context.Context, id uint, amount decimal.Decimal) (*models.User, error) {
	var user *models.User
	err := r.Transaction(ctx, func(tx *GormRepo) error {
		u, err := tx.LockUser(ctx, id)
		if err != nil {
			return err
		}
		next := u.Balance.Add(amount).Round(2)
		if err := tx.SetBalance(ctx, id, next); err != nil {
			return err
		}
		u.Balance = next
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
