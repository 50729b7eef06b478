// FILE: internal/service/audit_service.go
package service

import (
	"context"
	"encoding/json"

	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventExporter ships events off the kiosk. Satisfied by *nats.Publisher.
type EventExporter interface {
	Publish(ctx context.Context, event events.Event) error
}

type IAuditService interface {
	Consume(ctx context.Context) error
}

// auditService writes every journey transition to the audit log and, when
// an exporter is configured, forwards it.
type auditService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	audit     logger.ILogger
	exporter  EventExporter
	logger    logger.ILogger
}

func NewAuditService(
	pubSub *gochannel.GoChannel,
	topicName string,
	audit logger.ILogger,
	exporter EventExporter,
	log logger.ILogger,
) IAuditService {
	return &auditService{
		pubSub:    pubSub,
		topicName: topicName,
		audit:     audit,
		exporter:  exporter,
		logger:    log,
	}
}

func (as *auditService) Consume(ctx context.Context) error {
	messages, err := as.pubSub.Subscribe(ctx, as.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			as.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (as *auditService) processMessage(ctx context.Context, msg *message.Message) {
	var evt events.JourneyTransition
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		as.logger.Error("Audit", "Failed to unmarshal transition", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	as.audit.Info("Journey", evt.Reason, evt.Payload())

	if as.exporter != nil {
		if err := as.exporter.Publish(ctx, evt); err != nil {
			// Export is best effort; the audit log already has the record.
			as.logger.Warn("Audit", "Failed to export transition", map[string]interface{}{
				"journey_id": evt.JourneyID,
				"error":      err.Error(),
			})
		}
	}

	msg.Ack()
}
