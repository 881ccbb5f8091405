package telnyx

import (
	"errors"
	"strings"
	"testing"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

func inboundPayload(from, to, text string) WebhookPayload {
	return WebhookPayload{
		Data: WebhookData{
			EventType: EventTypeMessageReceived,
			Payload: MessagePayload{
				Text: text,
				From: PhoneEndpoint{PhoneNumber: from},
				To:   []PhoneEndpoint{{PhoneNumber: to}},
			},
		},
	}
}

func TestExtractInbound(t *testing.T) {
	msg, err := ExtractInbound(inboundPayload("+15551234567", "+15557654321", "  hello  "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.From != "+15551234567" || msg.To != "+15557654321" {
		t.Errorf("unexpected endpoints: %+v", msg)
	}
	if msg.Text != "hello" {
		t.Errorf("text not trimmed: %q", msg.Text)
	}
}

func TestExtractInbound_MissingEventType(t *testing.T) {
	_, err := ExtractInbound(WebhookPayload{})
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestExtractInbound_IgnoredEventType(t *testing.T) {
	payload := inboundPayload("+15551234567", "+15557654321", "hello")
	payload.Data.EventType = "message.finalized"
	_, err := ExtractInbound(payload)
	if !errors.Is(err, models.ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for delivery receipt, got %v", err)
	}
}

func TestExtractInbound_MissingFields(t *testing.T) {
	cases := []struct {
		name    string
		payload WebhookPayload
		fields  []string
	}{
		{"no from", inboundPayload("", "+15557654321", "hello"), []string{"from"}},
		{"no to", WebhookPayload{Data: WebhookData{EventType: EventTypeMessageReceived, Payload: MessagePayload{Text: "hi", From: PhoneEndpoint{PhoneNumber: "+1555"}}}}, []string{"to"}},
		{"whitespace text", inboundPayload("+15551234567", "+15557654321", "   "), []string{"text"}},
		{"all missing", WebhookPayload{Data: WebhookData{EventType: EventTypeMessageReceived}}, []string{"from", "to", "text"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ExtractInbound(c.payload)
			var mf *MissingFieldsError
			if !errors.As(err, &mf) {
				t.Fatalf("expected MissingFieldsError, got %v", err)
			}
			if len(mf.Fields) != len(c.fields) {
				t.Fatalf("expected fields %v, got %v", c.fields, mf.Fields)
			}
			for i, f := range c.fields {
				if mf.Fields[i] != f {
					t.Errorf("expected field %q at %d, got %q", f, i, mf.Fields[i])
				}
			}
			if !strings.Contains(mf.Error(), c.fields[0]) {
				t.Errorf("error message does not name missing field: %s", mf.Error())
			}
		})
	}
}
