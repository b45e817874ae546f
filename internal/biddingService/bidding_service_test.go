package bidding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/events"
	model "auction-house/internal/models"
	"auction-house/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openAuction(auctionID, publisherID string, start, end time.Time, minimumBid float64) model.Auction {
	return model.Auction{
		AuctionID:   auctionID,
		Title:       "auction " + auctionID,
		StartTime:   start,
		EndTime:     end,
		Status:      model.StatusOpen,
		MinimumBid:  minimumBid,
		PublisherID: publisherID,
	}
}

type bidForAuctionMatcher struct{ auctionID string }

func (m bidForAuctionMatcher) Matches(x any) bool {
	b, ok := x.(model.Bid)
	return ok && b.AuctionID == m.auctionID
}

func (m bidForAuctionMatcher) String() string { return "bid for auction " + m.auctionID }

func bidForAuction(auctionID string) gomock.Matcher { return bidForAuctionMatcher{auctionID} }

// Tests PlaceBid
func TestBiddingService_PlaceBid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuctions := repository.NewMockAuctionStore(ctrl)
	mockBids := repository.NewMockBidStore(ctrl)
	mockPersons := repository.NewMockPersonStore(ctrl)
	service := NewBiddingService(mockAuctions, mockBids, mockPersons, events.NewHub())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Each case gets its own auction ID so parallel subtests never consume
	// each other's expectations.
	open := func(auctionID string) model.Auction {
		return openAuction(auctionID, "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 100)
	}

	// Table-driven test cases
	tests := []struct {
		name          string
		auctionID     string
		bidderID      string
		amount        float64
		now           time.Time
		mockSetup     func()
		expectError   bool
		expectedError error
	}{
		{
			name:      "valid_first_bid",
			auctionID: "auction-valid",
			bidderID:  "bidder1",
			amount:    100,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-valid").Return(open("auction-valid"), nil)
				mockPersons.EXPECT().GetPerson(gomock.Any(), "bidder1").Return(model.Person{PersonID: "bidder1", Name: "Bidder One"}, nil)
				mockBids.EXPECT().GetWinningBid(gomock.Any(), "auction-valid").Return(model.Bid{}, auctionerrors.ErrNoBids)
				mockBids.EXPECT().RecordBid(gomock.Any(), bidForAuction("auction-valid")).Return(nil)
				mockBids.EXPECT().CountBids(gomock.Any(), "auction-valid").Return(1, nil)
			},
			expectError: false,
		},
		{
			name:          "empty_auctionID",
			auctionID:     "",
			bidderID:      "bidder1",
			amount:        50,
			now:           now,
			mockSetup:     func() {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:          "empty_bidderID",
			auctionID:     "auction-novalidate",
			bidderID:      "",
			amount:        50,
			now:           now,
			mockSetup:     func() {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:          "zero_amount",
			auctionID:     "auction-novalidate",
			bidderID:      "bidder1",
			amount:        0,
			now:           now,
			mockSetup:     func() {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:          "negative_amount",
			auctionID:     "auction-novalidate",
			bidderID:      "bidder1",
			amount:        -50,
			now:           now,
			mockSetup:     func() {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:      "auction_not_found",
			auctionID: "auction-missing",
			bidderID:  "bidder1",
			amount:    150,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-missing").Return(model.Auction{}, fmt.Errorf("get auction auction-missing: %w", auctionerrors.ErrAuctionNotFound))
			},
			expectError:   true,
			expectedError: auctionerrors.ErrAuctionNotFound,
		},
		{
			name:      "auction_scheduled",
			auctionID: "auction-sched",
			bidderID:  "bidder1",
			amount:    150,
			now:       now,
			mockSetup: func() {
				scheduled := open("auction-sched")
				scheduled.Status = model.StatusScheduled
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-sched").Return(scheduled, nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrAuctionNotOpen,
		},
		{
			name:      "auction_closed",
			auctionID: "auction-done",
			bidderID:  "bidder1",
			amount:    150,
			now:       now,
			mockSetup: func() {
				closed := open("auction-done")
				closed.Status = model.StatusClosed
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-done").Return(closed, nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrAuctionNotOpen,
		},
		{
			name:      "status_lags_wall_clock",
			auctionID: "auction-lag",
			bidderID:  "bidder1",
			amount:    150,
			now:       now.Add(2 * time.Hour), // past end, status still OPEN
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-lag").Return(open("auction-lag"), nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrAuctionNotOpen,
		},
		{
			name:      "self_bid_forbidden",
			auctionID: "auction-self",
			bidderID:  "publisher1",
			amount:    1000,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-self").Return(open("auction-self"), nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrSelfBid,
		},
		{
			name:      "bidder_not_found",
			auctionID: "auction-ghost",
			bidderID:  "ghost",
			amount:    150,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-ghost").Return(open("auction-ghost"), nil)
				mockPersons.EXPECT().GetPerson(gomock.Any(), "ghost").Return(model.Person{}, fmt.Errorf("get person ghost: %w", auctionerrors.ErrPersonNotFound))
			},
			expectError:   true,
			expectedError: auctionerrors.ErrPersonNotFound,
		},
		{
			name:      "bid_equal_to_highest_rejected",
			auctionID: "auction-floor",
			bidderID:  "bidder2",
			amount:    180,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-floor").Return(open("auction-floor"), nil)
				mockPersons.EXPECT().GetPerson(gomock.Any(), "bidder2").Return(model.Person{PersonID: "bidder2"}, nil)
				mockBids.EXPECT().GetWinningBid(gomock.Any(), "auction-floor").Return(model.Bid{Amount: 180}, nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "first_bid_below_minimum",
			auctionID: "auction-first",
			bidderID:  "bidder2",
			amount:    99,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-first").Return(open("auction-first"), nil)
				mockPersons.EXPECT().GetPerson(gomock.Any(), "bidder2").Return(model.Person{PersonID: "bidder2"}, nil)
				mockBids.EXPECT().GetWinningBid(gomock.Any(), "auction-first").Return(model.Bid{}, auctionerrors.ErrNoBids)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "repo_fails",
			auctionID: "auction-err",
			bidderID:  "bidder3",
			amount:    500,
			now:       now,
			mockSetup: func() {
				mockAuctions.EXPECT().GetAuction(gomock.Any(), "auction-err").Return(open("auction-err"), nil)
				mockPersons.EXPECT().GetPerson(gomock.Any(), "bidder3").Return(model.Person{PersonID: "bidder3"}, nil)
				mockBids.EXPECT().GetWinningBid(gomock.Any(), "auction-err").Return(model.Bid{Amount: 200}, nil)
				mockBids.EXPECT().RecordBid(gomock.Any(), bidForAuction("auction-err")).Return(errors.New("repo write failed"))
			},
			expectError:   true,
			expectedError: nil, // Service wraps repo error, we don't match specific error here
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel() // Run tests concurrently

			tc.mockSetup()

			bid, err := service.PlaceBid(context.Background(), tc.auctionID, tc.bidderID, tc.amount, tc.now)

			if tc.expectError {
				require.Error(t, err)
				if tc.expectedError != nil {
					require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				}
			} else {
				require.NoError(t, err)

				// Validate generated BidID
				require.NotEmpty(t, bid.BidID)
				_, parseErr := uuid.Parse(bid.BidID)
				require.NoError(t, parseErr, "BidID should be a valid UUID")

				// Validate bid fields
				require.Equal(t, tc.auctionID, bid.AuctionID)
				require.Equal(t, tc.bidderID, bid.BidderID)
				require.Equal(t, tc.amount, bid.Amount)
				require.Equal(t, tc.now, bid.PlacedAt)
			}
		})
	}
}

// TestBiddingService_PlaceBid_FloorReported verifies the rejection carries
// the exact floor so the caller can retry with a corrected amount.
func TestBiddingService_PlaceBid_FloorReported(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := repository.NewMemoryRepo()
	repo.AddPerson(model.Person{PersonID: "bidder1", Name: "Bidder One"})
	auction := openAuction("auction1", "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 100)
	require.NoError(t, repo.SaveAuction(ctx, auction))

	service := NewBiddingService(repo, repo, repo, events.NewHub())

	_, err := service.PlaceBid(ctx, "auction1", "bidder1", 150, now)
	require.NoError(t, err)

	_, err = service.PlaceBid(ctx, "auction1", "bidder1", 120, now)
	require.Error(t, err)

	var tooLow *auctionerrors.BidTooLowError
	require.True(t, errors.As(err, &tooLow))
	require.Equal(t, 150.0, tooLow.Floor)
}

// Boundary scenario: minimum 100, window [T, T+3600s).
func TestBiddingService_PlaceBid_Boundaries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3600 * time.Second)

	repo := repository.NewMemoryRepo()
	repo.AddPerson(model.Person{PersonID: "bidder1", Name: "Bidder One"})
	repo.AddPerson(model.Person{PersonID: "bidder2", Name: "Bidder Two"})
	require.NoError(t, repo.SaveAuction(ctx, openAuction("auction1", "publisher1", start, end, 100)))

	service := NewBiddingService(repo, repo, repo, events.NewHub())

	// First bid equal to the minimum is accepted.
	bid, err := service.PlaceBid(ctx, "auction1", "bidder1", 100, start.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 100.0, bid.Amount)

	winning, err := service.GetWinningBid(ctx, "auction1")
	require.NoError(t, err)
	require.Equal(t, 100.0, winning.Amount)

	// Matching the floor is rejected with the floor reported.
	_, err = service.PlaceBid(ctx, "auction1", "bidder2", 100, start.Add(2*time.Second))
	require.Error(t, err)
	var tooLow *auctionerrors.BidTooLowError
	require.True(t, errors.As(err, &tooLow))
	require.Equal(t, 100.0, tooLow.Floor)

	// The end boundary is exclusive.
	_, err = service.PlaceBid(ctx, "auction1", "bidder2", 150, end)
	require.Error(t, err)
	require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotOpen))
}

// Self-bid is rejected regardless of amount.
func TestBiddingService_PlaceBid_SelfBid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := repository.NewMemoryRepo()
	repo.AddPerson(model.Person{PersonID: "publisher1", Name: "Publisher"})
	require.NoError(t, repo.SaveAuction(ctx, openAuction("auction1", "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 100)))

	service := NewBiddingService(repo, repo, repo, events.NewHub())

	for _, amount := range []float64{1, 100, 1e9} {
		_, err := service.PlaceBid(ctx, "auction1", "publisher1", amount, now)
		require.Error(t, err)
		require.True(t, errors.Is(err, auctionerrors.ErrSelfBid))
	}
}

// Property: under concurrent submissions the accepted amounts form a single
// strictly increasing sequence per auction.
func TestBiddingService_PlaceBid_ConcurrentStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := repository.NewMemoryRepo()
	require.NoError(t, repo.SaveAuction(ctx, openAuction("auction1", "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 10)))

	const bidders = 8
	const bidsPerBidder = 25

	for i := 0; i < bidders; i++ {
		repo.AddPerson(model.Person{PersonID: fmt.Sprintf("bidder-%d", i), Name: fmt.Sprintf("Bidder %d", i)})
	}

	service := NewBiddingService(repo, repo, repo, events.NewHub())

	var wg sync.WaitGroup
	var accepted int64
	var acceptedMu sync.Mutex
	var acceptedAmounts []float64

	for i := 0; i < bidders; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(i)))
			for j := 0; j < bidsPerBidder; j++ {
				amount := float64(rng.Intn(1000) + 1)
				bid, err := service.PlaceBid(ctx, "auction1", fmt.Sprintf("bidder-%d", i), amount, now)
				if err != nil {
					require.True(t, errors.Is(err, auctionerrors.ErrBidTooLow), "unexpected rejection: %v", err)
					continue
				}
				acceptedMu.Lock()
				accepted++
				acceptedAmounts = append(acceptedAmounts, bid.Amount)
				acceptedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Greater(t, accepted, int64(0))

	// Placement order in the store is the acceptance order.
	bids, err := repo.GetBidsByAuction(ctx, "auction1")
	require.NoError(t, err)
	require.Len(t, bids, int(accepted))
	for i := 1; i < len(bids); i++ {
		require.Greater(t, bids[i].Amount, bids[i-1].Amount,
			"accepted amounts must be strictly increasing: %v then %v", bids[i-1].Amount, bids[i].Amount)
	}

	// The watermark is the maximum accepted amount.
	sort.Float64s(acceptedAmounts)
	winning, err := repo.GetWinningBid(ctx, "auction1")
	require.NoError(t, err)
	require.Equal(t, acceptedAmounts[len(acceptedAmounts)-1], winning.Amount)
}

// Two near-simultaneous bids against the same floor: never both persisted
// out of order.
func TestBiddingService_PlaceBid_RacingPair(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for round := 0; round < 50; round++ {
		repo := repository.NewMemoryRepo()
		repo.AddPerson(model.Person{PersonID: "seed", Name: "Seed"})
		repo.AddPerson(model.Person{PersonID: "racer1", Name: "Racer One"})
		repo.AddPerson(model.Person{PersonID: "racer2", Name: "Racer Two"})
		require.NoError(t, repo.SaveAuction(ctx, openAuction("auction1", "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 10)))

		service := NewBiddingService(repo, repo, repo, events.NewHub())

		_, err := service.PlaceBid(ctx, "auction1", "seed", 150, now)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			service.PlaceBid(ctx, "auction1", "racer1", 200, now)
		}()
		go func() {
			defer wg.Done()
			service.PlaceBid(ctx, "auction1", "racer2", 201, now)
		}()
		wg.Wait()

		bids, err := repo.GetBidsByAuction(ctx, "auction1")
		require.NoError(t, err)
		for i := 1; i < len(bids); i++ {
			require.Greater(t, bids[i].Amount, bids[i-1].Amount)
		}

		winning, err := repo.GetWinningBid(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, 201.0, winning.Amount)
	}
}

// An accepted bid publishes one event carrying the new price state.
func TestBiddingService_PlaceBid_PublishesEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := repository.NewMemoryRepo()
	repo.AddPerson(model.Person{PersonID: "bidder1", Name: "Bidder One"})
	require.NoError(t, repo.SaveAuction(ctx, openAuction("auction1", "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 100)))

	hub := events.NewHub()
	ch, cancel := hub.Subscribe("auction1")
	defer cancel()

	service := NewBiddingService(repo, repo, repo, hub)

	bid, err := service.PlaceBid(ctx, "auction1", "bidder1", 120, now)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, events.KindBidAccepted, ev.Kind)
		payload, ok := ev.Payload.(events.BidAccepted)
		require.True(t, ok)
		require.Equal(t, bid.BidID, payload.BidID)
		require.Equal(t, "Bidder One", payload.BidderName)
		require.Equal(t, 120.0, payload.CurrentPrice)
		require.Equal(t, 1, payload.TotalBids)
		require.Equal(t, now, payload.At)
	case <-time.After(time.Second):
		t.Fatal("expected a bid-accepted event")
	}
}

// Tests DeleteBid
func TestBiddingService_DeleteBid(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*BiddingService, *repository.MemoryRepo, model.Bid) {
		repo := repository.NewMemoryRepo()
		repo.AddPerson(model.Person{PersonID: "bidder1", Name: "Bidder One"})
		repo.AddPerson(model.Person{PersonID: "bidder2", Name: "Bidder Two"})
		repo.AddPerson(model.Person{PersonID: "admin1", Name: "Admin", Admin: true})
		require.NoError(t, repo.SaveAuction(ctx, openAuction("auction1", "publisher1", now.Add(-time.Hour), now.Add(time.Hour), 100)))

		service := NewBiddingService(repo, repo, repo, events.NewHub())
		bid, err := service.PlaceBid(ctx, "auction1", "bidder1", 120, now)
		require.NoError(t, err)
		return service, repo, bid
	}

	t.Run("own_bidder_may_delete", func(t *testing.T) {
		t.Parallel()
		service, repo, bid := setup(t)

		require.NoError(t, service.DeleteBid(ctx, bid.BidID, "bidder1"))
		_, err := repo.GetBid(ctx, bid.BidID)
		require.True(t, errors.Is(err, auctionerrors.ErrBidNotFound))
	})

	t.Run("admin_may_delete", func(t *testing.T) {
		t.Parallel()
		service, _, bid := setup(t)
		require.NoError(t, service.DeleteBid(ctx, bid.BidID, "admin1"))
	})

	t.Run("other_bidder_forbidden", func(t *testing.T) {
		t.Parallel()
		service, _, bid := setup(t)
		err := service.DeleteBid(ctx, bid.BidID, "bidder2")
		require.Error(t, err)
		require.True(t, errors.Is(err, auctionerrors.ErrNotBidOwner))
	})

	t.Run("missing_bid", func(t *testing.T) {
		t.Parallel()
		service, _, _ := setup(t)
		err := service.DeleteBid(ctx, "no-such-bid", "bidder1")
		require.Error(t, err)
		require.True(t, errors.Is(err, auctionerrors.ErrBidNotFound))
	})
}

// Tests GetBidsForAuction / GetWinningBid input validation
func TestBiddingService_Getters_EmptyID(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewBiddingService(
		repository.NewMockAuctionStore(ctrl),
		repository.NewMockBidStore(ctrl),
		repository.NewMockPersonStore(ctrl),
		events.NewHub(),
	)

	_, err := service.GetBidsForAuction(context.Background(), "")
	require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))

	_, err = service.GetWinningBid(context.Background(), "")
	require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))
}
