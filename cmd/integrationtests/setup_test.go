package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "auction-house/internal/auctionService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/events"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/server"

	"github.com/gin-gonic/gin"
)

// testPersons are seeded into every test router: a publisher, two bidders
// and one administrator.
var testPersons = []model.Person{
	{PersonID: "publisher1", Name: "Alice Seller"},
	{PersonID: "bidder1", Name: "Bob Bidder"},
	{PersonID: "bidder2", Name: "Carol Bidder"},
	{PersonID: "admin1", Name: "Dave Admin", Admin: true},
}

// SetupTestRouter initializes the router with an in-memory repository and
// seeds the given auctions for integration testing.
func SetupTestRouter(t *testing.T, auctions ...model.Auction) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	for _, p := range testPersons {
		repo.AddPerson(p)
	}
	for _, a := range auctions {
		if err := repo.SaveAuction(context.Background(), a); err != nil {
			t.Fatalf("failed to seed auction: %v", err)
		}
	}

	hub := events.NewHub()
	biddingService := bidding.NewBiddingService(repo, repo, repo, hub)
	auctionService := auction.NewAuctionService(repo, repo, repo, hub)
	return server.SetupRouter(biddingService, auctionService, hub)
}

// OpenAuction builds an auction that is currently accepting bids.
func OpenAuction(auctionID string, minimumBid float64) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		AuctionID:   auctionID,
		Title:       "title " + auctionID,
		Description: "description " + auctionID,
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
		Status:      model.StatusOpen,
		MinimumBid:  minimumBid,
		PublisherID: "publisher1",
	}
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and
// parses the enveloped response, returning the data payload for 2xx replies.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := ExecuteRequest(t, router, method, url, reqBody, nil)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code >= 200 && w.Code < 300 {
			if data, ok := resp["data"].(map[string]any); ok {
				resp = data
			}
		}
	}

	return resp, w
}
