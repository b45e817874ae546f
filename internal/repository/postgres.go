package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepo implements AuctionStore, BidStore and PersonStore on a pgx
// connection pool. The highest bid is derived with an indexed max query;
// serialization of the read-check-write admission sequence is the bidding
// service's per-auction lock, not a database transaction.
type PostgresRepo struct {
	DB *pgxpool.Pool
}

// NewPostgresRepo creates a new Postgres-backed repository instance
func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

const auctionColumns = `auction_id, title, description, start_time, end_time, status, minimum_bid, publisher_id`

// SaveAuction inserts or replaces an auction row
func (r *PostgresRepo) SaveAuction(ctx context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("save auction: %w - missing auction ID", auctionerrors.ErrInvalidAuction)
	}

	query := `INSERT INTO auction (` + auctionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (auction_id) DO UPDATE SET
	              title = EXCLUDED.title,
	              description = EXCLUDED.description,
	              start_time = EXCLUDED.start_time,
	              end_time = EXCLUDED.end_time,
	              status = EXCLUDED.status,
	              minimum_bid = EXCLUDED.minimum_bid,
	              publisher_id = EXCLUDED.publisher_id`
	_, err := r.DB.Exec(ctx, query,
		auction.AuctionID,
		auction.Title,
		auction.Description,
		auction.StartTime,
		auction.EndTime,
		auction.Status,
		auction.MinimumBid,
		auction.PublisherID)
	if err != nil {
		return fmt.Errorf("save auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

// GetAuction returns an auction by ID
func (r *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction WHERE auction_id = $1`
	var a model.Auction
	err := r.DB.QueryRow(ctx, query, auctionID).Scan(
		&a.AuctionID, &a.Title, &a.Description, &a.StartTime, &a.EndTime, &a.Status, &a.MinimumBid, &a.PublisherID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// DeleteAuction removes an auction; bid rows cascade
func (r *PostgresRepo) DeleteAuction(ctx context.Context, auctionID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM auction WHERE auction_id = $1`, auctionID)
	if err != nil {
		return fmt.Errorf("delete auction %s: %w", auctionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return nil
}

// ListScheduledToOpen returns SCHEDULED auctions with start_time <= now
func (r *PostgresRepo) ListScheduledToOpen(ctx context.Context, now time.Time) ([]model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction
	          WHERE status = $1 AND start_time <= $2 ORDER BY auction_id`
	return r.queryAuctions(ctx, query, model.StatusScheduled, now)
}

// ListOpenToClose returns OPEN auctions with end_time <= now
func (r *PostgresRepo) ListOpenToClose(ctx context.Context, now time.Time) ([]model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction
	          WHERE status = $1 AND end_time <= $2 ORDER BY auction_id`
	return r.queryAuctions(ctx, query, model.StatusOpen, now)
}

// ListEndingSoon returns OPEN auctions ending within the window, soonest first
func (r *PostgresRepo) ListEndingSoon(ctx context.Context, now time.Time, within time.Duration, limit int) ([]model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction
	          WHERE status = $1 AND end_time > $2 AND end_time <= $3
	          ORDER BY end_time LIMIT $4`
	return r.queryAuctions(ctx, query, model.StatusOpen, now, now.Add(within), limit)
}

func (r *PostgresRepo) queryAuctions(ctx context.Context, query string, args ...any) ([]model.Auction, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query auctions: %w", err)
	}
	defer rows.Close()

	var out []model.Auction
	for rows.Next() {
		var a model.Auction
		if err := rows.Scan(&a.AuctionID, &a.Title, &a.Description, &a.StartTime, &a.EndTime, &a.Status, &a.MinimumBid, &a.PublisherID); err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordBid inserts an accepted bid row
func (r *PostgresRepo) RecordBid(ctx context.Context, bid model.Bid) error {
	query := `INSERT INTO bid (bid_id, auction_id, bidder_id, amount, placed_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.Exec(ctx, query, bid.BidID, bid.AuctionID, bid.BidderID, bid.Amount, bid.PlacedAt)
	if err != nil {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
	}
	return nil
}

// GetBid returns a bid by ID
func (r *PostgresRepo) GetBid(ctx context.Context, bidID string) (model.Bid, error) {
	query := `SELECT bid_id, auction_id, bidder_id, amount, placed_at FROM bid WHERE bid_id = $1`
	var b model.Bid
	err := r.DB.QueryRow(ctx, query, bidID).Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return b, nil
}

// GetBidsByAuction returns all bids for an auction in placement order
func (r *PostgresRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	query := `SELECT bid_id, auction_id, bidder_id, amount, placed_at FROM bid
	          WHERE auction_id = $1 ORDER BY placed_at, bid_id`
	bids, err := r.queryBids(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return bids, nil
}

// GetRecentBids returns the most recent bids for an auction, newest first
func (r *PostgresRepo) GetRecentBids(ctx context.Context, auctionID string, limit int) ([]model.Bid, error) {
	query := `SELECT bid_id, auction_id, bidder_id, amount, placed_at FROM bid
	          WHERE auction_id = $1 ORDER BY placed_at DESC, bid_id DESC LIMIT $2`
	return r.queryBids(ctx, query, auctionID, limit)
}

// GetWinningBid returns the highest bid for an auction
func (r *PostgresRepo) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	query := `SELECT bid_id, auction_id, bidder_id, amount, placed_at FROM bid
	          WHERE auction_id = $1 ORDER BY amount DESC, placed_at LIMIT 1`
	var b model.Bid
	err := r.DB.QueryRow(ctx, query, auctionID).Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, err)
	}
	return b, nil
}

// CountBids returns the number of bids recorded for an auction
func (r *PostgresRepo) CountBids(ctx context.Context, auctionID string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM bid WHERE auction_id = $1`, auctionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bids for auction %s: %w", auctionID, err)
	}
	return count, nil
}

// DeleteBid removes a bid row
func (r *PostgresRepo) DeleteBid(ctx context.Context, bidID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM bid WHERE bid_id = $1`, bidID)
	if err != nil {
		return fmt.Errorf("delete bid %s: %w", bidID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete bid %s: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	return nil
}

// GetPerson returns a person by ID
func (r *PostgresRepo) GetPerson(ctx context.Context, personID string) (model.Person, error) {
	query := `SELECT person_id, name, admin FROM person WHERE person_id = $1`
	var p model.Person
	err := r.DB.QueryRow(ctx, query, personID).Scan(&p.PersonID, &p.Name, &p.Admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Person{}, fmt.Errorf("get person %s: %w", personID, auctionerrors.ErrPersonNotFound)
	}
	if err != nil {
		return model.Person{}, fmt.Errorf("get person %s: %w", personID, err)
	}
	return p, nil
}

func (r *PostgresRepo) queryBids(ctx context.Context, query string, args ...any) ([]model.Bid, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	var out []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
