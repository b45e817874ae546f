package models

import "time"

// AuctionStatus is the lifecycle state of an auction. Transitions are
// monotonic: SCHEDULED -> OPEN -> CLOSED, and CLOSED is terminal.
type AuctionStatus string

const (
	StatusScheduled AuctionStatus = "SCHEDULED"
	StatusOpen      AuctionStatus = "OPEN"
	StatusClosed    AuctionStatus = "CLOSED"
)

// Person represents a participant in the marketplace
type Person struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
}

// Auction represents a published auction listing
type Auction struct {
	AuctionID   string        `json:"auction_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Status      AuctionStatus `json:"status"`
	MinimumBid  float64       `json:"minimum_bid"`
	PublisherID string        `json:"publisher_id"`
}

// Bid represents an accepted bid on an auction. Bids are immutable once recorded.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}
