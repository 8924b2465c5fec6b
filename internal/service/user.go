package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/events"
	"github.com/Skotchmaster/online_auction/internal/logging"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/repo"
)

type UserService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *UserService) List(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	return s.Repo.ListUsers(ctx, offset, limit)
}

// AddMoney credits amount to the user's balance and returns the new balance.
func (s *UserService) AddMoney(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	l := logging.FromContext(ctx).With("svc", "user.add_money", "user_id", userID)

	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	if amount.GreaterThan(models.MaxMoney) {
		return decimal.Zero, fmt.Errorf("amount exceeds %s: %w", models.MaxMoney.StringFixed(2), ErrValidation)
	}

	u, err := s.Repo.AddBalance(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		if errors.Is(err, repo.ErrBalanceOverflow) {
			return decimal.Zero, fmt.Errorf("balance would exceed %s: %w", models.MaxMoney.StringFixed(2), ErrValidation)
		}
		l.Error("add_money_error", "status", 500, "error", err)
		return decimal.Zero, err
	}

	l.Info("balance_added", "amount", amount.String(), "balance", u.Balance.String())

	if s.Events != nil {
		if err := s.Events.PublishEvent(ctx, events.TopicUsers, strconv.FormatUint(uint64(userID), 10), events.UserEvent{
			Type:    events.BalanceAdded,
			UserID:  userID,
			Balance: u.Balance,
			At:      time.Now().UTC(),
		}); err != nil {
			l.Warn("publish_error", "topic", events.TopicUsers, "error", err)
		}
	}
	return u.Balance, nil
}
