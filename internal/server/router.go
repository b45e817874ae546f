package server

import (
	auction "auction-house/internal/auctionService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/events"
	"auction-house/internal/metrics"
	auctionhandler "auction-house/services/auction/handler"
	biddinghandler "auction-house/services/bidding/handler"
	livehandler "auction-house/services/live/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService *bidding.BiddingService, auctionService *auction.AuctionService, hub *events.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(metrics.GinMiddleware())

	biddingHandler := biddinghandler.NewBiddingHandler(biddingService)
	auctionHandler := auctionhandler.NewAuctionHandler(auctionService)
	liveHandler := livehandler.NewLiveHandler(hub)

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.PlaceBidHandler)
		bids.DELETE("/:bid_id", biddingHandler.DeleteBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/ending-soon", auctionHandler.EndingSoonHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.PUT("/:auction_id", auctionHandler.UpdateAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
	}

	router.GET("/ws/auctions/:auction_id", liveHandler.SubscribeHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}
