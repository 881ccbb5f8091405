package telnyx

import (
	"fmt"
	"strings"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// EventTypeMessageReceived is the only webhook event type that carries an
// inbound message. Everything else (delivery receipts, finalized events) is
// acknowledged and ignored.
const EventTypeMessageReceived = "message.received"

// WebhookPayload is the inbound event envelope posted by Telnyx.
type WebhookPayload struct {
	Data WebhookData `json:"data"`
}

// WebhookData carries the event type tag and the event-specific payload.
type WebhookData struct {
	EventType string         `json:"event_type"`
	Payload   MessagePayload `json:"payload"`
}

// MessagePayload is the message.received payload subset we consume.
type MessagePayload struct {
	Text string          `json:"text"`
	From PhoneEndpoint   `json:"from"`
	To   []PhoneEndpoint `json:"to"`
}

// PhoneEndpoint wraps a phone number field.
type PhoneEndpoint struct {
	PhoneNumber string `json:"phone_number"`
}

// MissingFieldsError reports which required fields were absent or empty on a
// genuine message.received event. It maps to a 400 response naming them.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// ExtractInbound validates and normalizes a webhook envelope into the
// canonical {from, to, text} triple. It is a pure transformation.
//
// Returns models.ErrInvalidPayload when the event type tag is absent or is
// not message.received; callers must acknowledge those events rather than
// surface an error. Returns *MissingFieldsError when a message.received
// event lacks its sender, recipient, or body text after trimming.
func ExtractInbound(payload WebhookPayload) (models.InboundMessage, error) {
	if payload.Data.EventType == "" || payload.Data.EventType != EventTypeMessageReceived {
		return models.InboundMessage{}, models.ErrInvalidPayload
	}

	msg := models.InboundMessage{
		From: strings.TrimSpace(payload.Data.Payload.From.PhoneNumber),
		Text: strings.TrimSpace(payload.Data.Payload.Text),
	}
	if len(payload.Data.Payload.To) > 0 {
		msg.To = strings.TrimSpace(payload.Data.Payload.To[0].PhoneNumber)
	}

	var missing []string
	if msg.From == "" {
		missing = append(missing, "from")
	}
	if msg.To == "" {
		missing = append(missing, "to")
	}
	if msg.Text == "" {
		missing = append(missing, "text")
	}
	if len(missing) > 0 {
		return models.InboundMessage{}, &MissingFieldsError{Fields: missing}
	}

	return msg, nil
}
