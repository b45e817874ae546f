package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/events"
	"auction-house/internal/lifecycle"
	"auction-house/internal/metrics"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// recentBidsLimit bounds how many bids an auction detail carries.
const recentBidsLimit = 10

// AuctionService owns auction creation, reads and the reconciliation pass
// that advances auction status from wall-clock boundaries.
type AuctionService struct {
	auctions  repository.AuctionStore
	bids      repository.BidStore
	persons   repository.PersonStore
	publisher events.Publisher
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(auctions repository.AuctionStore, bids repository.BidStore, persons repository.PersonStore, publisher events.Publisher) *AuctionService {
	return &AuctionService{
		auctions:  auctions,
		bids:      bids,
		persons:   persons,
		publisher: publisher,
	}
}

// CreateAuctionInput carries the publisher-supplied fields of a new auction
type CreateAuctionInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	MinimumBid  float64
	PublisherID string
}

// AuctionDetail is an auction together with its derived price state
type AuctionDetail struct {
	Auction      models.Auction `json:"auction"`
	CurrentPrice float64        `json:"current_price"`
	TotalBids    int            `json:"total_bids"`
	RecentBids   []models.Bid   `json:"recent_bids"`
}

// Create validates and persists a new auction. Its initial status is derived
// from the auction window relative to now.
func (s *AuctionService) Create(ctx context.Context, in CreateAuctionInput, now time.Time) (models.Auction, error) {
	if err := validateInput(in.Title, in.StartTime, in.EndTime, in.MinimumBid); err != nil {
		return models.Auction{}, err
	}
	if in.PublisherID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing publisher ID", auctionerrors.ErrInvalidAuction)
	}

	if _, err := s.persons.GetPerson(ctx, in.PublisherID); err != nil {
		return models.Auction{}, fmt.Errorf("service: %w", err)
	}

	auction := models.Auction{
		AuctionID:   utils.GenerateID(),
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Status:      lifecycle.InitialStatus(in.StartTime, in.EndTime, now),
		MinimumBid:  in.MinimumBid,
		PublisherID: in.PublisherID,
	}

	if err := s.auctions.SaveAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to save auction: %w", err)
	}
	metrics.AuctionCreated()

	utils.Info("auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"status":     auction.Status,
		"publisher":  auction.PublisherID,
	})
	return auction, nil
}

// Get returns an auction with its current price, bid count and recent bids
func (s *AuctionService) Get(ctx context.Context, auctionID string) (AuctionDetail, error) {
	if auctionID == "" {
		return AuctionDetail{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("service: %w", err)
	}

	detail := AuctionDetail{Auction: auction, CurrentPrice: auction.MinimumBid}

	winning, err := s.bids.GetWinningBid(ctx, auctionID)
	if err == nil {
		detail.CurrentPrice = winning.Amount
	} else if !errors.Is(err, auctionerrors.ErrNoBids) {
		return AuctionDetail{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}

	count, err := s.bids.CountBids(ctx, auctionID)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("service: failed to count bids for auction %s: %w", auctionID, err)
	}
	detail.TotalBids = count

	recent, err := s.bids.GetRecentBids(ctx, auctionID, recentBidsLimit)
	if err != nil {
		return AuctionDetail{}, fmt.Errorf("service: failed to get recent bids for auction %s: %w", auctionID, err)
	}
	detail.RecentBids = recent

	return detail, nil
}

// Update replaces the publisher-editable fields of an auction. Only the
// publisher may update, and only while no bid has been accepted.
func (s *AuctionService) Update(ctx context.Context, auctionID string, in CreateAuctionInput, actorID string) (models.Auction, error) {
	if err := validateInput(in.Title, in.StartTime, in.EndTime, in.MinimumBid); err != nil {
		return models.Auction{}, err
	}

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: %w", err)
	}
	if auction.PublisherID != actorID {
		return models.Auction{}, fmt.Errorf("service: %w - only the publisher may update auction %s", auctionerrors.ErrInvalidAuction, auctionID)
	}

	count, err := s.bids.CountBids(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to count bids for auction %s: %w", auctionID, err)
	}
	if count > 0 {
		return models.Auction{}, fmt.Errorf("service: %w - auction %s", auctionerrors.ErrAuctionHasBids, auctionID)
	}

	auction.Title = in.Title
	auction.Description = in.Description
	auction.StartTime = in.StartTime
	auction.EndTime = in.EndTime
	auction.MinimumBid = in.MinimumBid

	if err := s.auctions.SaveAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to save auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListEndingSoon returns OPEN auctions ending within the window, soonest first
func (s *AuctionService) ListEndingSoon(ctx context.Context, now time.Time, within time.Duration, limit int) ([]models.Auction, error) {
	auctions, err := s.auctions.ListEndingSoon(ctx, now, within, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list ending-soon auctions: %w", err)
	}
	return auctions, nil
}

// Reconcile advances auctions whose wall-clock boundary has passed: SCHEDULED
// auctions past their start open, OPEN auctions past their end close. Each
// transition is persisted and published once. The pass is idempotent; a
// second run at the same now finds no boundary-crossing auctions. A failure
// on one auction is logged and does not stop the others; crashed or skipped
// work is re-derived from the wall clock on the next tick.
func (s *AuctionService) Reconcile(ctx context.Context, now time.Time) error {
	started := time.Now()
	defer func() { metrics.ObserveReconcileTick(time.Since(started)) }()

	// Snapshot both query sets before applying any transition. An auction
	// holds one status at snapshot time, so the sets are disjoint and an
	// auction whose whole window elapsed between ticks advances one step per
	// pass, never SCHEDULED to CLOSED in a single pass.
	toOpen, err := s.auctions.ListScheduledToOpen(ctx, now)
	if err != nil {
		return fmt.Errorf("service: failed to list auctions to open: %w", err)
	}
	toClose, err := s.auctions.ListOpenToClose(ctx, now)
	if err != nil {
		return fmt.Errorf("service: failed to list auctions to close: %w", err)
	}

	for _, a := range toOpen {
		s.transition(ctx, a, now)
	}
	for _, a := range toClose {
		s.transition(ctx, a, now)
	}

	return nil
}

// transition applies one lifecycle step to a single auction, persists it and
// publishes the status event. Persist failure leaves the auction untouched
// for the next tick; publish failure is impossible by contract.
func (s *AuctionService) transition(ctx context.Context, a models.Auction, now time.Time) {
	next, changed, err := lifecycle.Next(a, now)
	if err != nil || !changed {
		if err != nil {
			utils.Error("reconcile: lifecycle fault", map[string]any{"auction_id": a.AuctionID, "error": err.Error()})
		}
		return
	}
	if !lifecycle.CanTransition(a.Status, next) {
		// Advisory double-check; Next only ever proposes legal steps.
		utils.Error("reconcile: illegal transition proposed", map[string]any{
			"auction_id": a.AuctionID,
			"from":       a.Status,
			"to":         next,
		})
		return
	}

	a.Status = next
	if err := s.auctions.SaveAuction(ctx, a); err != nil {
		utils.Error("reconcile: failed to persist transition", map[string]any{
			"auction_id": a.AuctionID,
			"to":         next,
			"error":      err.Error(),
		})
		return
	}
	metrics.AuctionTransition(next)

	utils.Info("auction status changed", map[string]any{
		"auction_id": a.AuctionID,
		"status":     next,
	})

	s.publisher.PublishStatusChanged(events.AuctionStatusChanged{
		AuctionID: a.AuctionID,
		NewStatus: next,
		At:        now,
	})
}

func validateInput(title string, start, end time.Time, minimumBid float64) error {
	if title == "" {
		return fmt.Errorf("service: %w - missing title", auctionerrors.ErrInvalidAuction)
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return fmt.Errorf("service: %w - start time must precede end time", auctionerrors.ErrInvalidAuction)
	}
	if minimumBid <= 0 {
		return fmt.Errorf("service: %w - minimum bid must be positive", auctionerrors.ErrInvalidAuction)
	}
	return nil
}
