package handler

import (
	"net/http"
	"time"

	"auction-house/internal/events"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

// LiveHandler bridges the in-process event hub to WebSocket viewers. Events
// are pushed as JSON envelopes; a viewer connecting after an event fired must
// re-fetch auction state over the regular HTTP endpoints.
type LiveHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
}

func NewLiveHandler(hub *events.Hub) *LiveHandler {
	return &LiveHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
}

// SubscribeHandler handles GET /ws/auctions/:auction_id
func (h *LiveHandler) SubscribeHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("SubscribeHandler: websocket upgrade failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	ch, cancel := h.hub.Subscribe(auctionID)

	utils.Info("SubscribeHandler: viewer connected", map[string]any{"auction_id": auctionID})

	go h.readPump(conn, cancel)
	h.writePump(conn, auctionID, ch)
}

// readPump drains client frames so close and pong handling work; any read
// error means the viewer is gone and the subscription is cancelled.
func (h *LiveHandler) readPump(conn *websocket.Conn, cancel func()) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes hub events and periodic pings until the subscription ends.
func (h *LiveHandler) writePump(conn *websocket.Conn, auctionID string, ch <-chan events.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				utils.Debug("SubscribeHandler: write failed, dropping viewer", map[string]any{
					"auction_id": auctionID,
					"error":      err.Error(),
				})
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
