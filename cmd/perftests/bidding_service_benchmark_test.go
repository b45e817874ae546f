package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/events"
	model "auction-house/internal/models"
	repository "auction-house/internal/repository"
)

func seedAuction(repo *repository.MemoryRepo, auctionID string, minimumBid float64) {
	now := time.Now().UTC()
	_ = repo.SaveAuction(context.Background(), model.Auction{
		AuctionID:   auctionID,
		Title:       "benchmark " + auctionID,
		Description: "benchmark auction",
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(24 * time.Hour),
		Status:      model.StatusOpen,
		MinimumBid:  minimumBid,
		PublisherID: "publisher_bench",
	})
}

func seedBidders(repo *repository.MemoryRepo, n int) {
	for i := 0; i < n; i++ {
		repo.AddPerson(model.Person{PersonID: fmt.Sprintf("bidder_%d", i), Name: fmt.Sprintf("Bidder %d", i)})
	}
}

// Benchmark 1: PlaceBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, repo, repo, events.NewHub())

	seedBidders(repo, 1)
	for i := 0; i < b.N; i++ {
		seedAuction(repo, fmt.Sprintf("auction_%d", i), 50)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		auctionID := fmt.Sprintf("auction_%d", i)
		bidAmount := float64(50 + rand.Intn(100))
		if _, err := svc.PlaceBid(ctx, auctionID, "bidder_0", bidAmount, now); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedAuction(b *testing.B) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, repo, repo, events.NewHub())

	seedBidders(repo, 64)
	seedAuction(repo, "shared_auction_1", 50)

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 50

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			bidderID := fmt.Sprintf("bidder_%d", rnd.Intn(64))

			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = svc.PlaceBid(ctx, "shared_auction_1", bidderID, float64(nextBid), now)
		}
	})
}

// Benchmark 3: GetWinningBid - Single-Threaded (Low Contention)
func Benchmark_GetWinningBid_SingleThreaded(b *testing.B) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, repo, repo, events.NewHub())

	seedBidders(repo, 10)
	for i := 0; i < b.N; i++ {
		auctionID := fmt.Sprintf("auction_%d", i)
		seedAuction(repo, auctionID, 50)

		for j := 0; j < 10; j++ {
			bidAmount := float64(60 + j*10)
			_, _ = svc.PlaceBid(ctx, auctionID, fmt.Sprintf("bidder_%d", j), bidAmount, now)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		auctionID := fmt.Sprintf("auction_%d", i)
		if _, err := svc.GetWinningBid(ctx, auctionID); err != nil {
			b.Fatalf("failed to get winning bid: %v", err)
		}
	}
}

// Benchmark 4: GetWinningBid - Concurrent (High Contention)
func Benchmark_GetWinningBid_ConcurrentSharedAuction(b *testing.B) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, repo, repo, events.NewHub())

	seedBidders(repo, 100)
	seedAuction(repo, "shared_auction_1", 50)

	for j := 0; j < 100; j++ {
		bidAmount := float64(51 + j)
		_, _ = svc.PlaceBid(ctx, "shared_auction_1", fmt.Sprintf("bidder_%d", j), bidAmount, now)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var counter int64

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := svc.GetWinningBid(ctx, "shared_auction_1"); err != nil {
				b.Fatalf("failed to get winning bid: %v", err)
			}
			atomic.AddInt64(&counter, 1)
		}
	})
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo := repository.NewMemoryRepo()
	svc := bidding.NewBiddingService(repo, repo, repo, events.NewHub())

	seedBidders(repo, 64)
	seedAuction(repo, "shared_auction_1", 50)

	for j := 0; j < 50; j++ {
		bidAmount := float64(52 + j*2)
		_, _ = svc.PlaceBid(ctx, "shared_auction_1", fmt.Sprintf("bidder_%d", j%64), bidAmount, now)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 200
	var counter int64

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			opType := rnd.Intn(10)
			switch {
			case opType < 3:
				// Writer: place a new bid
				bidderID := fmt.Sprintf("bidder_%d", rnd.Intn(64))
				nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_, _ = svc.PlaceBid(ctx, "shared_auction_1", bidderID, float64(nextBid), now)
			default:
				// Reader: get winning bid
				_, _ = svc.GetWinningBid(ctx, "shared_auction_1")
			}
			atomic.AddInt64(&counter, 1)
		}
	})
}
