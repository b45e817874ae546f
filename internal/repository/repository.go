package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
)

// AuctionStore defines the auction storage interface
type AuctionStore interface {
	SaveAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	DeleteAuction(ctx context.Context, auctionID string) error
	// ListScheduledToOpen returns SCHEDULED auctions whose start time has
	// passed; ListOpenToClose returns OPEN auctions whose end time has
	// passed. Both are scoped to boundary-crossing auctions only so a
	// reconciliation tick stays cheap.
	ListScheduledToOpen(ctx context.Context, now time.Time) ([]model.Auction, error)
	ListOpenToClose(ctx context.Context, now time.Time) ([]model.Auction, error)
	ListEndingSoon(ctx context.Context, now time.Time, within time.Duration, limit int) ([]model.Auction, error)
}

// BidStore defines the bid storage interface
type BidStore interface {
	RecordBid(ctx context.Context, bid model.Bid) error
	GetBid(ctx context.Context, bidID string) (model.Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetRecentBids(ctx context.Context, auctionID string, limit int) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	CountBids(ctx context.Context, auctionID string) (int, error)
	DeleteBid(ctx context.Context, bidID string) error
}

// PersonStore is the read-only identity collaborator
type PersonStore interface {
	GetPerson(ctx context.Context, personID string) (model.Person, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of all three
// stores. The highest accepted bid per auction is kept as a watermark
// updated with each recorded bid, so the admission path never rescans the
// full bid list.
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	bids     map[string][]model.Bid // key: auctionID -> bids in placement order
	bidIndex map[string]model.Bid   // key: bidID
	highest  map[string]model.Bid   // key: auctionID -> watermark bid
	persons  map[string]model.Person
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
		bidIndex: make(map[string]model.Bid),
		highest:  make(map[string]model.Bid),
		persons:  make(map[string]model.Person),
	}
}

// SaveAuction inserts or replaces an auction
func (r *MemoryRepo) SaveAuction(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("save auction: %w - missing auction ID", auctionerrors.ErrInvalidAuction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.AuctionID] = auction
	return nil
}

// GetAuction returns an auction by ID
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// DeleteAuction removes an auction and its bids
func (r *MemoryRepo) DeleteAuction(_ context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return fmt.Errorf("delete auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	for _, b := range r.bids[auctionID] {
		delete(r.bidIndex, b.BidID)
	}
	delete(r.bids, auctionID)
	delete(r.highest, auctionID)
	delete(r.auctions, auctionID)
	return nil
}

// ListScheduledToOpen returns SCHEDULED auctions with startTime <= now
func (r *MemoryRepo) ListScheduledToOpen(_ context.Context, now time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.StatusScheduled && !a.StartTime.After(now) {
			out = append(out, a)
		}
	}
	sortByID(out)
	return out, nil
}

// ListOpenToClose returns OPEN auctions with endTime <= now
func (r *MemoryRepo) ListOpenToClose(_ context.Context, now time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.StatusOpen && !a.EndTime.After(now) {
			out = append(out, a)
		}
	}
	sortByID(out)
	return out, nil
}

// ListEndingSoon returns OPEN auctions ending within the given window,
// soonest first
func (r *MemoryRepo) ListEndingSoon(_ context.Context, now time.Time, within time.Duration, limit int) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := now.Add(within)
	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.StatusOpen && a.EndTime.After(now) && !a.EndTime.After(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordBid records an accepted bid and advances the auction's watermark
func (r *MemoryRepo) RecordBid(_ context.Context, bid model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}

	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	r.bidIndex[bid.BidID] = bid

	current, ok := r.highest[bid.AuctionID]
	if !ok || bid.Amount > current.Amount {
		r.highest[bid.AuctionID] = bid
	}
	return nil
}

// GetBid returns a bid by ID
func (r *MemoryRepo) GetBid(_ context.Context, bidID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bid, ok := r.bidIndex[bidID]
	if !ok {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	return bid, nil
}

// GetBidsByAuction returns all bids for an auction in placement order
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[auctionID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// GetRecentBids returns the most recent bids for an auction, newest first
func (r *MemoryRepo) GetRecentBids(_ context.Context, auctionID string, limit int) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := r.bids[auctionID]
	out := make([]model.Bid, 0, limit)
	for i := len(bids) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, bids[i])
	}
	return out, nil
}

// GetWinningBid returns the highest bid for an auction from the watermark
func (r *MemoryRepo) GetWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bid, ok := r.highest[auctionID]
	if !ok {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return bid, nil
}

// CountBids returns the number of bids recorded for an auction
func (r *MemoryRepo) CountBids(_ context.Context, auctionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bids[auctionID]), nil
}

// DeleteBid removes a bid. If the deleted bid held the watermark the
// remaining bids are rescanned so the store stays internally consistent.
func (r *MemoryRepo) DeleteBid(_ context.Context, bidID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bid, ok := r.bidIndex[bidID]
	if !ok {
		return fmt.Errorf("delete bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	delete(r.bidIndex, bidID)

	remaining := r.bids[bid.AuctionID][:0]
	for _, b := range r.bids[bid.AuctionID] {
		if b.BidID != bidID {
			remaining = append(remaining, b)
		}
	}
	r.bids[bid.AuctionID] = remaining

	if r.highest[bid.AuctionID].BidID == bidID {
		delete(r.highest, bid.AuctionID)
		for _, b := range remaining {
			current, ok := r.highest[bid.AuctionID]
			if !ok || b.Amount > current.Amount || (b.Amount == current.Amount && b.PlacedAt.Before(current.PlacedAt)) {
				r.highest[bid.AuctionID] = b
			}
		}
	}
	return nil
}

// GetPerson returns a person by ID
func (r *MemoryRepo) GetPerson(_ context.Context, personID string) (model.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.persons[personID]
	if !ok {
		return model.Person{}, fmt.Errorf("get person %s: %w", personID, auctionerrors.ErrPersonNotFound)
	}
	return p, nil
}

// AddPerson adds a person to the repository. Intended for seeding and tests.
func (r *MemoryRepo) AddPerson(p model.Person) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persons[p.PersonID] = p
}

func sortByID(auctions []model.Auction) {
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].AuctionID < auctions[j].AuctionID })
}
