package handler

import (
	"context"
	"encoding/json"

	"smart-supermarket/internal/journey"
	"smart-supermarket/internal/mapper"
	"smart-supermarket/internal/pkg/logger"
	internalWS "smart-supermarket/internal/websocket"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const messageTypeJourney = "journey"

type Snapshotter interface {
	Snapshot() journey.Snapshot
}

// StateHandler pushes the journey state to kiosk displays over websocket.
type StateHandler struct {
	journey Snapshotter
	hub     *internalWS.Hub
	pubSub  *gochannel.GoChannel
	topic   string
	mapper  *mapper.JourneyMapper
	logger  logger.ILogger
}

func NewStateHandler(j Snapshotter, hub *internalWS.Hub, pubSub *gochannel.GoChannel, topic string, log logger.ILogger) *StateHandler {
	return &StateHandler{
		journey: j,
		hub:     hub,
		pubSub:  pubSub,
		topic:   topic,
		mapper:  mapper.NewJourneyMapper(),
		logger:  log,
	}
}

func (h *StateHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}

// ServeWs upgrades the connection and sends the current state right away.
func (h *StateHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		initial, err := json.Marshal(internalWS.Envelope{
			Type: messageTypeJourney,
			Data: h.mapper.ToJourneyResponse(h.journey.Snapshot()),
		})
		if err != nil {
			initial = nil
		}
		internalWS.ServeWs(h.hub, conn, initial)
	})(c)
}

// Relay broadcasts a fresh snapshot after every journey transition.
func (h *StateHandler) Relay(ctx context.Context) error {
	messages, err := h.pubSub.Subscribe(ctx, h.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			msg.Ack()
			h.hub.Broadcast(ctx, messageTypeJourney, h.mapper.ToJourneyResponse(h.journey.Snapshot()))
		}
		h.logger.Info("StateHandler", "Relay stopped", nil)
	}()

	return nil
}
