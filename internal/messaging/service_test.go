package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/telnyx"
)

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := NewService(telnyx.NewMockClient())

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+15551234567", "+15551234567", false},
		{"(555) 123-4567", "+5551234567", false},
		{"1 555 123 4567", "+15551234567", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, c := range cases {
		got, err := svc.ValidateAndCanonicalizeRecipient(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("expected error for %q, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for %q: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("canonicalize %q = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSendMessage_Canonicalizes(t *testing.T) {
	mock := telnyx.NewMockClient()
	svc := NewService(mock)

	if err := svc.SendMessage(context.Background(), "(555) 123-4567", "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "+5551234567" {
		t.Errorf("recipient not canonicalized: %s", mock.SentMessages[0].To)
	}
}

func TestSendMessage_PropagatesProviderError(t *testing.T) {
	mock := telnyx.NewMockClient()
	mock.Err = errors.New("provider down")
	svc := NewService(mock)

	if err := svc.SendMessage(context.Background(), "+15551234567", "hello", nil); err == nil {
		t.Error("expected provider error, got nil")
	}
}
