package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/online_auction/internal/models"
)

// NewDB opens a migrated in-memory sqlite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func SeedUser(t testing.TB, db *gorm.DB, username, role, balance string) models.User {
	t.Helper()
	u := models.User{
		Username:     username,
		PasswordHash: "x",
		Role:         role,
		Balance:      decimal.RequireFromString(balance),
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func SeedAuction(t testing.TB, db *gorm.DB, startingPrice string, end time.Time) models.Auction {
	t.Helper()
	a := models.Auction{
		Image:         "img.png",
		Description:   "vintage lamp",
		EndDate:       end.UTC(),
		StartingPrice: decimal.RequireFromString(startingPrice),
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}
