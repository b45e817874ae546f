// Package events fans derived auction events out to live subscribers.
// Delivery is best-effort, at-most-once: there is no durable queue and a
// subscriber that connects late must re-fetch current state out of band.
package events

import (
	"sync"
	"time"

	model "auction-house/internal/models"
	"auction-house/utils"
)

// Event kinds carried on a subscription stream.
const (
	KindAuctionStatusChanged = "auction_status_changed"
	KindBidAccepted          = "bid_accepted"
)

// AuctionStatusChanged announces a lifecycle transition.
type AuctionStatusChanged struct {
	AuctionID string              `json:"auction_id"`
	NewStatus model.AuctionStatus `json:"new_status"`
	At        time.Time           `json:"at"`
}

// BidAccepted announces an admitted bid together with the derived price state.
type BidAccepted struct {
	AuctionID    string    `json:"auction_id"`
	BidID        string    `json:"bid_id"`
	Amount       float64   `json:"amount"`
	BidderName   string    `json:"bidder_name"`
	At           time.Time `json:"at"`
	CurrentPrice float64   `json:"current_price"`
	TotalBids    int       `json:"total_bids"`
}

// Event is the envelope delivered to subscribers.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Publisher is the fan-out interface the services depend on. Publishing
// never fails the triggering operation.
type Publisher interface {
	PublishStatusChanged(ev AuctionStatusChanged)
	PublishBidAccepted(ev BidAccepted)
	Subscribe(auctionID string) (<-chan Event, func())
}

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped for it.
const subscriberBuffer = 16

// Hub is an in-process Publisher keyed by auction ID.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event // key: auctionID -> subscriber set
}

// NewHub creates an empty fan-out hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers interest in one auction's events. The returned cancel
// func must be called when the subscriber disconnects; it closes the channel.
func (h *Hub) Subscribe(auctionID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, subscriberBuffer)

	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[int]chan Event)
	}
	h.subs[auctionID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[auctionID]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				close(c)
			}
			if len(set) == 0 {
				delete(h.subs, auctionID)
			}
		}
	}
	return ch, cancel
}

// PublishStatusChanged fans a status transition out to the auction's subscribers
func (h *Hub) PublishStatusChanged(ev AuctionStatusChanged) {
	h.publish(ev.AuctionID, Event{Kind: KindAuctionStatusChanged, Payload: ev})
}

// PublishBidAccepted fans an accepted bid out to the auction's subscribers
func (h *Hub) PublishBidAccepted(ev BidAccepted) {
	h.publish(ev.AuctionID, Event{Kind: KindBidAccepted, Payload: ev})
}

// SubscriberCount reports how many subscribers an auction currently has
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}

func (h *Hub) publish(auctionID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, ch := range h.subs[auctionID] {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		utils.Warn("events: dropped events for slow subscribers", map[string]any{
			"auction_id": auctionID,
			"kind":       ev.Kind,
			"dropped":    dropped,
		})
	}
}
