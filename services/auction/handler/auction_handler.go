package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	auction "auction-house/internal/auctionService"
	model "auction-house/internal/models"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	Create(ctx context.Context, in auction.CreateAuctionInput, now time.Time) (model.Auction, error)
	Get(ctx context.Context, auctionID string) (auction.AuctionDetail, error)
	Update(ctx context.Context, auctionID string, in auction.CreateAuctionInput, actorID string) (model.Auction, error)
	ListEndingSoon(ctx context.Context, now time.Time, within time.Duration, limit int) ([]model.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// AuctionRequest is the publisher-supplied auction payload
type AuctionRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	MinimumBid  float64   `json:"minimum_bid" binding:"required,gt=0"`
	PublisherID string    `json:"publisher_id"`
}

func (r AuctionRequest) toInput() auction.CreateAuctionInput {
	return auction.CreateAuctionInput{
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime.UTC(),
		EndTime:     r.EndTime.UTC(),
		MinimumBid:  r.MinimumBid,
		PublisherID: r.PublisherID,
	}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req AuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), req.toInput(), time.Now().UTC())
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{
			"title": req.Title,
			"error": err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, created, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": created.AuctionID,
		"status":     created.Status,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	detail, err := h.service.Get(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, detail, "auction retrieved successfully")
}

// UpdateAuctionHandler handles PUT /auctions/:auction_id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	actorID := c.GetHeader("X-Person-ID")
	if actorID == "" {
		utils.JSONError(c, http.StatusBadRequest, fmt.Errorf("missing X-Person-ID header"), "missing X-Person-ID header")
		return
	}

	var req AuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), auctionID, req.toInput(), actorID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("UpdateAuctionHandler: failed to update auction", map[string]any{
			"auction_id": auctionID,
			"actor_id":   actorID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, updated, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{
		"auction_id": auctionID,
	})
}

// EndingSoonHandler handles GET /auctions/ending-soon
func (h *AuctionHandler) EndingSoonHandler(c *gin.Context) {
	within := 24 * time.Hour
	if raw := c.Query("within"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			utils.JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid within duration %q", raw), "invalid within duration")
			return
		}
		within = parsed
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw), "invalid limit")
			return
		}
		limit = parsed
	}

	auctions, err := h.service.ListEndingSoon(c.Request.Context(), time.Now().UTC(), within, limit)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}
	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}
