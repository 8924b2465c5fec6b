package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/events"
	"github.com/Skotchmaster/online_auction/internal/logging"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/repo"
	"github.com/Skotchmaster/online_auction/internal/search"
	"github.com/Skotchmaster/online_auction/internal/storage"
)

var endDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseEndDate accepts RFC 3339 and the HTML datetime-local/date forms.
// Values without a zone are read as UTC.
func ParseEndDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid end date %q: %w", s, ErrValidation)
}

type ImageUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

type AuctionInput struct {
	Description   string
	EndDate       string
	StartingPrice decimal.Decimal
	Image         *ImageUpload
}

type AuctionDetail struct {
	Auction models.Auction
	View    AuctionView
}

type AuctionService struct {
	Repo   *repo.GormRepo
	Images storage.ImageStore
	Index  search.Index
	Events events.Publisher
	Now    func() time.Time
}

func (s *AuctionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type validAuction struct {
	description   string
	endDate       time.Time
	startingPrice decimal.Decimal
}

func validateAuction(in AuctionInput) (validAuction, error) {
	var v validAuction
	v.description = strings.TrimSpace(in.Description)
	if v.description == "" {
		return v, fmt.Errorf("description is required: %w", ErrValidation)
	}
	end, err := ParseEndDate(in.EndDate)
	if err != nil {
		return v, err
	}
	v.endDate = end
	v.startingPrice = in.StartingPrice.Round(2)
	if v.startingPrice.IsNegative() {
		return v, fmt.Errorf("starting price must not be negative: %w", ErrValidation)
	}
	if v.startingPrice.GreaterThan(models.MaxMoney) {
		return v, fmt.Errorf("starting price exceeds %s: %w", models.MaxMoney.StringFixed(2), ErrValidation)
	}
	if in.Image != nil && !storage.AllowedImage(storage.SanitizeFilename(in.Image.Filename)) {
		return v, fmt.Errorf("image must be png, jpg, jpeg or gif: %w", ErrValidation)
	}
	return v, nil
}

func (s *AuctionService) saveImage(ctx context.Context, img *ImageUpload) (string, error) {
	ref, err := s.Images.Save(ctx, img.Filename, img.Reader, img.Size)
	if errors.Is(err, storage.ErrEmptyFilename) || errors.Is(err, storage.ErrDisallowedFormat) {
		return "", fmt.Errorf("image: %v: %w", err, ErrValidation)
	}
	return ref, err
}

func (s *AuctionService) Create(ctx context.Context, in AuctionInput) (*models.Auction, error) {
	l := logging.FromContext(ctx).With("svc", "auction.create")

	if in.Image == nil {
		return nil, fmt.Errorf("image is required: %w", ErrValidation)
	}
	v, err := validateAuction(in)
	if err != nil {
		return nil, err
	}

	ref, err := s.saveImage(ctx, in.Image)
	if err != nil {
		if !errors.Is(err, ErrValidation) {
			l.Error("create_auction_error", "status", 500, "reason", "cannot store image", "error", err)
		}
		return nil, err
	}

	a := models.Auction{
		Image:         ref,
		Description:   v.description,
		EndDate:       v.endDate,
		StartingPrice: v.startingPrice,
	}
	if err := s.Repo.CreateAuction(ctx, &a); err != nil {
		l.Error("create_auction_error", "status", 500, "error", err)
		s.removeImage(ctx, ref)
		return nil, err
	}

	l.Info("auction_created", "auction_id", a.ID)
	s.indexAuction(ctx, &a)
	s.publish(ctx, events.AuctionCreated, &a)
	return &a, nil
}

// Update replaces the editable fields of an auction. The stored image is
// kept unless a new one is uploaded.
func (s *AuctionService) Update(ctx context.Context, id uint, in AuctionInput) (*models.Auction, error) {
	l := logging.FromContext(ctx).With("svc", "auction.update", "auction_id", id)

	v, err := validateAuction(in)
	if err != nil {
		return nil, err
	}

	current, err := s.Repo.GetAuction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auction %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	oldImage := current.Image
	newImage := ""
	if in.Image != nil {
		newImage, err = s.saveImage(ctx, in.Image)
		if err != nil {
			if !errors.Is(err, ErrValidation) {
				l.Error("update_auction_error", "status", 500, "reason", "cannot store image", "error", err)
			}
			return nil, err
		}
		current.Image = newImage
	}
	current.Description = v.description
	current.EndDate = v.endDate
	current.StartingPrice = v.startingPrice

	if err := s.Repo.UpdateAuction(ctx, current); err != nil {
		if newImage != "" {
			s.removeImage(ctx, newImage)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auction %d: %w", id, ErrNotFound)
		}
		l.Error("update_auction_error", "status", 500, "error", err)
		return nil, err
	}
	if newImage != "" && oldImage != "" && oldImage != newImage {
		s.removeImage(ctx, oldImage)
	}

	l.Info("auction_updated")
	s.indexAuction(ctx, current)
	s.publish(ctx, events.AuctionUpdated, current)
	return current, nil
}

func (s *AuctionService) Delete(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "auction.delete", "auction_id", id)

	a, err := s.Repo.DeleteAuction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("auction %d: %w", id, ErrNotFound)
		}
		l.Error("delete_auction_error", "status", 500, "error", err)
		return err
	}

	l.Info("auction_deleted")
	s.removeImage(ctx, a.Image)
	if s.Index != nil {
		if err := s.Index.DeleteAuction(ctx, id); err != nil {
			l.Warn("index_error", "error", err)
		}
	}
	s.publish(ctx, events.AuctionDeleted, a)
	return nil
}

func (s *AuctionService) Get(ctx context.Context, id uint) (*AuctionDetail, error) {
	a, err := s.Repo.GetAuction(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auction %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &AuctionDetail{Auction: *a, View: Evaluate(*a, s.now())}, nil
}

func (s *AuctionService) List(ctx context.Context, offset, limit int) (int64, []AuctionView, error) {
	total, items, err := s.Repo.ListAuctions(ctx, offset, limit)
	if err != nil {
		return 0, nil, err
	}
	return total, EvaluateAll(items, s.now()), nil
}

// Search matches auctions by description. The search index is used when
// configured and reachable, otherwise the database is queried directly.
func (s *AuctionService) Search(ctx context.Context, q string, offset, limit int) (int64, []AuctionView, error) {
	l := logging.FromContext(ctx).With("svc", "auction.search")

	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("query is required: %w", ErrValidation)
	}

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			items, err := s.Repo.GetAuctionsByIDs(ctx, ids)
			if err != nil {
				return 0, nil, err
			}
			return total, EvaluateAll(items, s.now()), nil
		}
		l.Warn("search_index_error", "reason", "falling back to database", "error", err)
	}

	total, items, err := s.Repo.SearchAuctions(ctx, q, offset, limit)
	if err != nil {
		return 0, nil, err
	}
	return total, EvaluateAll(items, s.now()), nil
}

func (s *AuctionService) indexAuction(ctx context.Context, a *models.Auction) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexAuction(ctx, search.AuctionDoc{
		ID:            a.ID,
		Description:   a.Description,
		EndDate:       a.EndDate,
		StartingPrice: a.StartingPrice,
	}); err != nil {
		logging.FromContext(ctx).Warn("index_error", "auction_id", a.ID, "error", err)
	}
}

func (s *AuctionService) removeImage(ctx context.Context, ref string) {
	if s.Images == nil || ref == "" {
		return
	}
	if err := s.Images.Delete(ctx, ref); err != nil {
		logging.FromContext(ctx).Warn("image_delete_error", "image", ref, "error", err)
	}
}

func (s *AuctionService) publish(ctx context.Context, typ string, a *models.Auction) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, events.TopicAuctions, strconv.FormatUint(uint64(a.ID), 10), events.AuctionEvent{
		Type:          typ,
		AuctionID:     a.ID,
		Description:   a.Description,
		EndDate:       a.EndDate,
		StartingPrice: a.StartingPrice,
		At:            s.now(),
	}); err != nil {
		logging.FromContext(ctx).Warn("publish_error", "topic", events.TopicAuctions, "error", err)
	}
}
