package di

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/domain"
)

// WebSocketHub tracks one live connection per chat context and
// delivers opportunity notifications over it, falling back to
// nothing (not an error) when a chat has no open connection — the
// caller's session layer is responsible for knowing who is online.
type WebSocketHub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	log   zerolog.Logger
}

// NewWebSocketHub creates a new, empty hub.
func NewWebSocketHub(log zerolog.Logger) *WebSocketHub {
	return &WebSocketHub{
		conns: make(map[string]*websocket.Conn),
		log:   log.With().Str("component", "websocket_hub").Logger(),
	}
}

// Register attaches a connection to a chat context, replacing and
// closing any prior connection for the same chat.
func (h *WebSocketHub) Register(chatID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.conns[chatID]; ok {
		_ = prev.Close()
	}
	h.conns[chatID] = conn
}

// Unregister removes a chat's connection, if it is still the one
// registered (a newer connection for the same chat is left in place).
func (h *WebSocketHub) Unregister(chatID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[chatID] == conn {
		delete(h.conns, chatID)
	}
}

// SendOpportunityNotification implements distribution.NotificationSender.
func (h *WebSocketHub) SendOpportunityNotification(_ context.Context, chatID string, opp *domain.GlobalOpportunity) error {
	h.mu.RLock()
	conn, ok := h.conns[chatID]
	h.mu.RUnlock()
	if !ok {
		h.log.Debug().Str("chat_id", chatID).Msg("no open connection, skipping notification")
		return nil
	}

	payload, err := json.Marshal(opp)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to write notification, dropping connection")
		h.Unregister(chatID, conn)
		return err
	}
	return nil
}
