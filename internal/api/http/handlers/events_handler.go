package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

const (
	partitionsKey = "ws_partitions"
	writeWait     = 10 * time.Second
	pingPeriod    = 30 * time.Second
)

// EventsHandler streams lifecycle events to WebSocket clients.
type EventsHandler struct {
	hub    *events.Hub
	logger *zap.Logger
}

// NewEventsHandler constructs handler.
func NewEventsHandler(hub *events.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Upgrade validates the requested partitions and lets only WebSocket
// upgrades through. Without a status parameter every partition is streamed.
func (h *EventsHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	partitions, err := parsePartitions(c)
	if err != nil {
		return err
	}
	c.Locals(partitionsKey, partitions)
	return c.Next()
}

// Stream GET /ws/tickets.
func (h *EventsHandler) Stream() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *EventsHandler) serve(conn *websocket.Conn) {
	partitions, _ := conn.Locals(partitionsKey).([]domain.TicketStatus)
	sub := h.hub.Subscribe(partitions...)
	defer func() {
		h.hub.Unsubscribe(sub)
		if dropped := sub.Dropped(); dropped > 0 {
			h.logger.Warn("slow subscriber dropped events", zap.Int64("dropped", dropped))
		}
	}()

	go func() {
		defer sub.Cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done():
			return
		case event := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func parsePartitions(c *fiber.Ctx) ([]domain.TicketStatus, error) {
	var partitions []domain.TicketStatus
	seen := map[domain.TicketStatus]bool{}
	for _, raw := range c.Context().QueryArgs().PeekMulti("status") {
		status := domain.TicketStatus(raw)
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(raw)})
		}
		if !seen[status] {
			seen[status] = true
			partitions = append(partitions, status)
		}
	}
	if len(partitions) == 0 {
		partitions = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending, domain.TicketStatusClosed}
	}
	return partitions, nil
}
