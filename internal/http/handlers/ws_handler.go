package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lnurlw/backend/internal/events"
	"github.com/lnurlw/backend/internal/models"
	"github.com/lnurlw/backend/internal/repositories"
	"go.uber.org/zap"
)

// WSHub streams redemption events to connected operator clients. Clients
// authenticate with their admin capability key; the list view itself still
// polls, the feed is purely additive.
type WSHub struct {
	walletRepo *repositories.WalletRepo
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	conns      map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(walletRepo *repositories.WalletRepo, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		walletRepo: walletRepo,
		subscriber: subscriber,
		log:        log,
		conns:      make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamWithdraw, func(event events.Event) {
		h.broadcast(event)
	})
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.conns {
		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	key := conn.Query("key")
	if key == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing key"}`))
		conn.Close()
		return
	}

	wallet, keyType, err := h.walletRepo.GetByKey(context.Background(), key)
	if err != nil || keyType != models.KeyTypeAdmin {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"admin key required"}`))
		conn.Close()
		return
	}

	userID := wallet.UserID

	h.mu.Lock()
	h.conns[userID] = append(h.conns[userID], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.conns[userID]
		for i, c := range conns {
			if c == conn {
				h.conns[userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.conns[userID]) == 0 {
			delete(h.conns, userID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop keeps the connection alive until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
