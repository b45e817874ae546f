// Package lifecycle holds the auction status state machine. It is pure
// decision logic: callers persist results and publish events.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	model "auction-house/internal/models"
)

// ErrInvalidTransition signals an out-of-order status transition. Callers
// only ever invoke legal transitions, so seeing this error is a programming
// fault, not a client error.
var ErrInvalidTransition = errors.New("invalid auction status transition")

// CanTransition reports whether to is a legal next status after from.
// SCHEDULED -> OPEN and OPEN -> CLOSED are the only legal transitions;
// CLOSED is terminal and a status never regresses.
func CanTransition(from, to model.AuctionStatus) bool {
	switch from {
	case model.StatusScheduled:
		return to == model.StatusOpen
	case model.StatusOpen:
		return to == model.StatusClosed
	default:
		return false
	}
}

// Next returns the status the auction should hold at now and whether that
// differs from its current status. It never skips a state: a SCHEDULED
// auction whose end has also passed advances one step per call, so each
// boundary crossing produces its own status event.
func Next(a model.Auction, now time.Time) (model.AuctionStatus, bool, error) {
	switch a.Status {
	case model.StatusScheduled:
		if !now.Before(a.StartTime) {
			return model.StatusOpen, true, nil
		}
		return a.Status, false, nil
	case model.StatusOpen:
		if !now.Before(a.EndTime) {
			return model.StatusClosed, true, nil
		}
		return a.Status, false, nil
	case model.StatusClosed:
		return a.Status, false, nil
	default:
		return a.Status, false, fmt.Errorf("lifecycle: unknown status %q: %w", a.Status, ErrInvalidTransition)
	}
}

// InitialStatus derives the status a newly created auction starts in,
// based on its window relative to now.
func InitialStatus(start, end, now time.Time) model.AuctionStatus {
	switch {
	case start.After(now):
		return model.StatusScheduled
	case end.Before(now):
		return model.StatusClosed
	default:
		return model.StatusOpen
	}
}
