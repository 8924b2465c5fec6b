package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/events"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/repo"
	"github.com/Skotchmaster/online_auction/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newBidding(t *testing.T) (*BiddingService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return &BiddingService{Repo: repo.New(db), Events: events.NopPublisher{}}, db
}

func balanceOf(t *testing.T, db *gorm.DB, id uint) decimal.Decimal {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u.Balance
}

func bidCount(t *testing.T, db *gorm.DB, auctionID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Bid{}).Where("auction_id = ?", auctionID).Count(&n).Error)
	return n
}

func TestPlaceBid_MustExceedStartingPrice(t *testing.T) {
	s, db := newBidding(t)
	ctx := context.Background()
	a := testutil.SeedAuction(t, db, "100", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "500")

	_, err := s.PlaceBid(ctx, a.ID, u.ID, dec("100"))
	assert.ErrorIs(t, err, ErrBidTooLow)
	assert.Zero(t, bidCount(t, db, a.ID))
	assert.True(t, balanceOf(t, db, u.ID).Equal(dec("500")))

	bid, err := s.PlaceBid(ctx, a.ID, u.ID, dec("101"))
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(dec("101")))
	assert.EqualValues(t, 1, bidCount(t, db, a.ID))
	assert.True(t, balanceOf(t, db, u.ID).Equal(dec("399")), balanceOf(t, db, u.ID).String())
}

func TestPlaceBid_InsufficientFunds(t *testing.T) {
	s, db := newBidding(t)
	a := testutil.SeedAuction(t, db, "10", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "50")

	_, err := s.PlaceBid(context.Background(), a.ID, u.ID, dec("60"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, IsBidRejection(err))
	assert.Zero(t, bidCount(t, db, a.ID))
	assert.True(t, balanceOf(t, db, u.ID).Equal(dec("50")))
}

func TestPlaceBid_CumulativeTotalsDebitIncrementOnly(t *testing.T) {
	s, db := newBidding(t)
	ctx := context.Background()
	a := testutil.SeedAuction(t, db, "100", time.Now().Add(time.Hour))
	ann := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "300")
	bob := testutil.SeedUser(t, db, "bob", models.RoleBuyer, "300")

	_, err := s.PlaceBid(ctx, a.ID, ann.ID, dec("110"))
	require.NoError(t, err)
	_, err = s.PlaceBid(ctx, a.ID, bob.ID, dec("120"))
	require.NoError(t, err)

	bid, err := s.PlaceBid(ctx, a.ID, ann.ID, dec("20"))
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(dec("130")), bid.Amount.String())

	assert.True(t, balanceOf(t, db, ann.ID).Equal(dec("170")))
	assert.True(t, balanceOf(t, db, bob.ID).Equal(dec("180")))
	assert.EqualValues(t, 3, bidCount(t, db, a.ID))

	_, err = s.PlaceBid(ctx, a.ID, bob.ID, dec("5"))
	assert.ErrorIs(t, err, ErrBidTooLow)
}

func TestPlaceBid_Validation(t *testing.T) {
	s, db := newBidding(t)
	ctx := context.Background()
	a := testutil.SeedAuction(t, db, "1", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "10")

	for _, amt := range []string{"0", "-5", "0.001"} {
		_, err := s.PlaceBid(ctx, a.ID, u.ID, dec(amt))
		assert.ErrorIs(t, err, ErrValidation, amt)
	}

	_, err := s.PlaceBid(ctx, 9999, u.ID, dec("5"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.PlaceBid(ctx, a.ID, 9999, dec("5"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceBid_EndedAuction(t *testing.T) {
	s, db := newBidding(t)
	a := testutil.SeedAuction(t, db, "1", time.Now().Add(-time.Minute))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "10")

	_, err := s.PlaceBid(context.Background(), a.ID, u.ID, dec("5"))
	assert.ErrorIs(t, err, ErrAuctionEnded)
	assert.Zero(t, bidCount(t, db, a.ID))
}

func TestPlaceBid_ConcurrentOnlyOneWins(t *testing.T) {
	s, db := newBidding(t)
	a := testutil.SeedAuction(t, db, "100", time.Now().Add(time.Hour))
	ann := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "200")
	bob := testutil.SeedUser(t, db, "bob", models.RoleBuyer, "200")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for _, uid := range []uint{ann.ID, bob.ID} {
		wg.Add(1)
		go func(uid uint) {
			defer wg.Done()
			_, err := s.PlaceBid(context.Background(), a.ID, uid, dec("101"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if assert.ErrorIs(t, err, ErrBidTooLow) {
				rejected++
			}
		}(uid)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.EqualValues(t, 1, bidCount(t, db, a.ID))

	total := balanceOf(t, db, ann.ID).Add(balanceOf(t, db, bob.ID))
	assert.True(t, total.Equal(dec("299")), total.String())
}

func TestPlaceBid_PublishesEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := events.NewMockPublisher(ctrl)

	db := testutil.NewDB(t)
	s := &BiddingService{Repo: repo.New(db), Events: pub}
	a := testutil.SeedAuction(t, db, "1", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "10")

	pub.EXPECT().
		PublishEvent(gomock.Any(), events.TopicBids, "1", gomock.AssignableToTypeOf(events.BidEvent{})).
		DoAndReturn(func(_ context.Context, _, _ string, ev any) error {
			be := ev.(events.BidEvent)
			assert.Equal(t, events.BidPlaced, be.Type)
			assert.True(t, be.Increment.Equal(dec("5")))
			return nil
		})

	_, err := s.PlaceBid(context.Background(), a.ID, u.ID, dec("5"))
	require.NoError(t, err)
}

func TestPlaceBid_RejectedBidPublishesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := events.NewMockPublisher(ctrl)

	db := testutil.NewDB(t)
	s := &BiddingService{Repo: repo.New(db), Events: pub}
	a := testutil.SeedAuction(t, db, "100", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "10")

	pub.EXPECT().PublishEvent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := s.PlaceBid(context.Background(), a.ID, u.ID, dec("50"))
	assert.ErrorIs(t, err, ErrBidTooLow)
}

func TestPlaceBid_FractionalDebitsStayExact(t *testing.T) {
	s, db := newBidding(t)
	ctx := context.Background()
	first := testutil.SeedAuction(t, db, "0", time.Now().Add(time.Hour))
	second := testutil.SeedAuction(t, db, "0", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "0.3")

	_, err := s.PlaceBid(ctx, first.ID, u.ID, dec("0.1"))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, db, u.ID).Equal(dec("0.2")), balanceOf(t, db, u.ID).String())

	_, err = s.PlaceBid(ctx, second.ID, u.ID, dec("0.2"))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, db, u.ID).IsZero(), balanceOf(t, db, u.ID).String())
}

func TestPlaceBid_RejectsAmountBeyondColumnPrecision(t *testing.T) {
	s, db := newBidding(t)
	a := testutil.SeedAuction(t, db, "0", time.Now().Add(time.Hour))
	u := testutil.SeedUser(t, db, "ann", models.RoleBuyer, "10")

	_, err := s.PlaceBid(context.Background(), a.ID, u.ID, dec("1000000000000"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, IsBidRejection(err))
	assert.Zero(t, bidCount(t, db, a.ID))
}
