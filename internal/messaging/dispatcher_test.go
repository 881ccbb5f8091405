package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/conversation"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/telnyx"
)

const testMediaURL = "https://example.com/agent-card.png"

func TestContainsLink(t *testing.T) {
	if !ContainsLink("see https://www.zillow.com/profile for more") {
		t.Error("https link not detected")
	}
	if !ContainsLink("http://example.com") {
		t.Error("http link not detected")
	}
	if ContainsLink("no links here") {
		t.Error("false positive link detection")
	}
}

func TestDispatch_AttachOnLink(t *testing.T) {
	mock := telnyx.NewMockClient()
	history := conversation.NewHistory()
	d := NewDispatcher(NewService(mock), history, AttachOnLink, testMediaURL)

	sent, withMedia := d.Dispatch(context.Background(), "+15551234567", "check https://example.com/profile")
	if !sent || !withMedia {
		t.Fatalf("expected sent with media, got sent=%v media=%v", sent, withMedia)
	}
	if len(mock.SentMessages[0].MediaURLs) != 1 || mock.SentMessages[0].MediaURLs[0] != testMediaURL {
		t.Errorf("media url not attached: %v", mock.SentMessages[0].MediaURLs)
	}

	sent, withMedia = d.Dispatch(context.Background(), "+15551234567", "plain text reply")
	if !sent || withMedia {
		t.Errorf("expected sent without media, got sent=%v media=%v", sent, withMedia)
	}
	if mock.SentMessages[1].MediaURLs != nil {
		t.Errorf("unexpected media on plain reply: %v", mock.SentMessages[1].MediaURLs)
	}
}

func TestDispatch_AttachOncePerSender(t *testing.T) {
	mock := telnyx.NewMockClient()
	history := conversation.NewHistory()
	d := NewDispatcher(NewService(mock), history, AttachOncePerSender, testMediaURL)

	_, withMedia := d.Dispatch(context.Background(), "+15551234567", "first https://example.com link")
	if !withMedia {
		t.Fatal("expected media on first linked reply")
	}
	_, withMedia = d.Dispatch(context.Background(), "+15551234567", "second https://example.com link")
	if withMedia {
		t.Error("expected no media on second linked reply to same sender")
	}
	_, withMedia = d.Dispatch(context.Background(), "+15559990000", "other sender https://example.com")
	if !withMedia {
		t.Error("expected media for a different sender")
	}
}

func TestDispatch_AttachNever(t *testing.T) {
	mock := telnyx.NewMockClient()
	d := NewDispatcher(NewService(mock), conversation.NewHistory(), AttachNever, testMediaURL)

	_, withMedia := d.Dispatch(context.Background(), "+15551234567", "link https://example.com")
	if withMedia {
		t.Error("expected no media under AttachNever")
	}
}

// An unset policy falls back to on_link; an unrecognized one does the same
// after a warning.
func TestNewDispatcher_PolicyDefaults(t *testing.T) {
	for _, policy := range []AttachmentPolicy{"", "sometimes"} {
		mock := telnyx.NewMockClient()
		d := NewDispatcher(NewService(mock), conversation.NewHistory(), policy, testMediaURL)
		if d.policy != AttachOnLink {
			t.Errorf("policy %q: expected on_link default, got %q", policy, d.policy)
		}

		_, withMedia := d.Dispatch(context.Background(), "+15551234567", "see https://example.com")
		if !withMedia {
			t.Errorf("policy %q: expected on_link behavior with a linked reply", policy)
		}
	}
}

func TestDispatch_NoMediaURLConfigured(t *testing.T) {
	mock := telnyx.NewMockClient()
	d := NewDispatcher(NewService(mock), conversation.NewHistory(), AttachOnLink, "")

	_, withMedia := d.Dispatch(context.Background(), "+15551234567", "link https://example.com")
	if withMedia {
		t.Error("expected no media when no media URL is configured")
	}
}

// Delivery failure is swallowed; the caller only sees sent=false.
func TestDispatch_SwallowsSendFailure(t *testing.T) {
	mock := telnyx.NewMockClient()
	mock.Err = errors.New("carrier rejected")
	history := conversation.NewHistory()
	d := NewDispatcher(NewService(mock), history, AttachOnLink, testMediaURL)

	sent, withMedia := d.Dispatch(context.Background(), "+15551234567", "see https://example.com")
	if sent || withMedia {
		t.Errorf("expected swallowed failure, got sent=%v media=%v", sent, withMedia)
	}
	if history.HasSentImage("+15551234567") {
		t.Error("image flag must not latch on failed send")
	}
}
