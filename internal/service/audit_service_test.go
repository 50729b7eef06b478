package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExporter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingExporter) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingExporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestAuditForwardsTransitions(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	exporter := &recordingExporter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewAuditService(pubSub, "journey.transitions", logger.NewNopLogger(), exporter, logger.NewNopLogger())
	require.NoError(t, svc.Consume(ctx))

	publisher := NewPublisherService(pubSub, "journey.transitions")
	payload, err := json.Marshal(events.JourneyTransition{JourneyID: "j-1", From: "ANONYMOUS", To: "CAPTURING_FOR_AUTH", OccurredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, payload))
	require.NoError(t, publisher.Publish(ctx, []byte("not json")))

	require.Eventually(t, func() bool { return exporter.count() == 1 }, time.Second, 10*time.Millisecond)
	exporter.mu.Lock()
	assert.Equal(t, events.TypeJourneyTransition, exporter.events[0].EventType())
	exporter.mu.Unlock()
}
