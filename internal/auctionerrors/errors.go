package auctionerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrPersonNotFound  = errors.New("person not found")
	ErrNoBids          = errors.New("no bids found for auction")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrAuctionNotOpen = errors.New("auction is not open for bidding")
	ErrSelfBid        = errors.New("publisher cannot bid on their own auction")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrNotBidOwner    = errors.New("bid may only be removed by its bidder or an administrator")
	ErrAuctionHasBids = errors.New("auction already has bids")
)

// BidTooLowError carries the current floor so the caller can retry with a
// corrected amount. errors.Is(err, ErrBidTooLow) holds.
type BidTooLowError struct {
	Floor float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount too low: current floor is %.2f", e.Floor)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }
