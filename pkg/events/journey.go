package events

import "time"

const TypeJourneyTransition = "JOURNEY_TRANSITION"

// JourneyTransition records one state change of a kiosk journey. It travels
// as JSON on the in-process bus and is re-published to NATS.
type JourneyTransition struct {
	JourneyID  string    `json:"journey_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason"`
	UserID     *int      `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (t JourneyTransition) EventType() string {
	return TypeJourneyTransition
}

func (t JourneyTransition) Payload() map[string]interface{} {
	data := map[string]interface{}{
		"journey_id":  t.JourneyID,
		"from":        t.From,
		"to":          t.To,
		"reason":      t.Reason,
		"occurred_at": t.OccurredAt,
	}
	if t.UserID != nil {
		data["user_id"] = *t.UserID
	}
	return data
}

func (t JourneyTransition) Timestamp() time.Time {
	return t.OccurredAt
}
