package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/events"
	"auction-house/internal/metrics"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// BiddingService is the bid admission engine. The read-check-write sequence
// for a single auction runs under that auction's mutex, so accepted amounts
// form a strictly increasing sequence per auction. Different auctions never
// contend.
type BiddingService struct {
	auctions  repository.AuctionStore
	bids      repository.BidStore
	persons   repository.PersonStore
	publisher events.Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // key: auctionID
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(auctions repository.AuctionStore, bids repository.BidStore, persons repository.PersonStore, publisher events.Publisher) *BiddingService {
	return &BiddingService{
		auctions:  auctions,
		bids:      bids,
		persons:   persons,
		publisher: publisher,
		locks:     make(map[string]*sync.Mutex),
	}
}

// auctionLock returns the mutex owning the given auction's admission state.
func (s *BiddingService) auctionLock(auctionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[auctionID] = l
	}
	return l
}

// PlaceBid validates and records a bid against the auction's state at now.
// Precondition checks run in a fixed order; the first failure wins. The
// admission decision uses the caller-supplied now throughout, never a cached
// status read, which closes the race with the reconciliation scheduler.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, now time.Time) (models.Bid, error) {
	started := time.Now()
	defer func() { metrics.ObserveBidAdmission(time.Since(started)) }()

	if auctionID == "" || bidderID == "" {
		metrics.BidRejected("invalid")
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", auctionerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		metrics.BidRejected("invalid")
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", auctionerrors.ErrInvalidBid)
	}

	lock := s.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		metrics.BidRejected("not_found")
		return models.Bid{}, fmt.Errorf("service: %w", err)
	}

	if auction.Status != models.StatusOpen {
		metrics.BidRejected("not_open")
		return models.Bid{}, fmt.Errorf("service: %w - auction %s status is %s", auctionerrors.ErrAuctionNotOpen, auctionID, auction.Status)
	}

	// The status row can lag the wall clock between scheduler ticks; the
	// [startTime, endTime) window check decides with the admission-time now.
	if now.Before(auction.StartTime) || !now.Before(auction.EndTime) {
		metrics.BidRejected("not_open")
		return models.Bid{}, fmt.Errorf("service: %w - auction %s window is [%s, %s)", auctionerrors.ErrAuctionNotOpen,
			auctionID, auction.StartTime.Format(time.RFC3339), auction.EndTime.Format(time.RFC3339))
	}

	if bidderID == auction.PublisherID {
		metrics.BidRejected("self_bid")
		return models.Bid{}, fmt.Errorf("service: %w - auction %s", auctionerrors.ErrSelfBid, auctionID)
	}

	bidder, err := s.persons.GetPerson(ctx, bidderID)
	if err != nil {
		metrics.BidRejected("not_found")
		return models.Bid{}, fmt.Errorf("service: %w", err)
	}

	floor, hasBids, err := s.currentFloor(ctx, auction)
	if err != nil {
		metrics.BidRejected("error")
		return models.Bid{}, fmt.Errorf("service: failed to check current floor for auction %s: %w", auctionID, err)
	}
	if (hasBids && amount <= floor) || (!hasBids && amount < floor) {
		metrics.BidRejected("too_low")
		return models.Bid{}, fmt.Errorf("service: %w", &auctionerrors.BidTooLowError{Floor: floor})
	}

	bid := models.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  now,
	}

	if err := s.bids.RecordBid(ctx, bid); err != nil {
		metrics.BidRejected("error")
		return models.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by bidder %s: %w", auctionID, bidderID, err)
	}
	metrics.BidAccepted()

	s.notifyBidAccepted(ctx, auction, bid, bidder.Name)
	return bid, nil
}

// currentFloor returns the amount the next bid must beat: the highest
// accepted amount when bids exist, else the auction's minimum bid.
func (s *BiddingService) currentFloor(ctx context.Context, auction models.Auction) (float64, bool, error) {
	winning, err := s.bids.GetWinningBid(ctx, auction.AuctionID)
	if err == nil {
		return winning.Amount, true, nil
	}
	if errors.Is(err, auctionerrors.ErrNoBids) {
		return auction.MinimumBid, false, nil
	}
	return 0, false, err
}

// notifyBidAccepted publishes the bid-accepted event. Fan-out is best-effort
// and never fails the admission that triggered it.
func (s *BiddingService) notifyBidAccepted(ctx context.Context, auction models.Auction, bid models.Bid, bidderName string) {
	totalBids, err := s.bids.CountBids(ctx, auction.AuctionID)
	if err != nil {
		utils.Warn("service: failed to count bids for event", map[string]any{
			"auction_id": auction.AuctionID,
			"error":      err.Error(),
		})
	}

	s.publisher.PublishBidAccepted(events.BidAccepted{
		AuctionID:    auction.AuctionID,
		BidID:        bid.BidID,
		Amount:       bid.Amount,
		BidderName:   bidderName,
		At:           bid.PlacedAt,
		CurrentPrice: bid.Amount,
		TotalBids:    totalBids,
	})
}

// GetBidsForAuction returns all bids for an auction in placement order
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}

	bids, err := s.bids.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetWinningBid returns the highest accepted bid for an auction
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}

	winning, err := s.bids.GetWinningBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}
	return winning, nil
}

// DeleteBid removes a bid. Only the bid's own bidder or an administrator may
// remove it; no admission-invariant repair is attempted beyond the store's
// own bookkeeping.
func (s *BiddingService) DeleteBid(ctx context.Context, bidID, actorID string) error {
	if bidID == "" || actorID == "" {
		return fmt.Errorf("service: %w - missing bidID or actorID", auctionerrors.ErrInvalidBid)
	}

	bid, err := s.bids.GetBid(ctx, bidID)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}

	actor, err := s.persons.GetPerson(ctx, actorID)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if !actor.Admin && bid.BidderID != actorID {
		return fmt.Errorf("service: %w - bid %s", auctionerrors.ErrNotBidOwner, bidID)
	}

	// Serialize with admissions so the store's watermark bookkeeping never
	// interleaves with a concurrent read-check-write.
	lock := s.auctionLock(bid.AuctionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.bids.DeleteBid(ctx, bidID); err != nil {
		return fmt.Errorf("service: failed to delete bid %s: %w", bidID, err)
	}
	return nil
}
