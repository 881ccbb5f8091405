package messaging

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/conversation"
)

// AttachmentPolicy decides when an outbound reply carries the media card.
// The handler revisions disagreed on this, so it is configuration, not fact.
type AttachmentPolicy string

const (
	// AttachOnLink attaches the card whenever the reply text contains an
	// HTTP(S) URL. This is the canonical policy.
	AttachOnLink AttachmentPolicy = "on_link"
	// AttachOncePerSender attaches the card the first time a link appears
	// in a reply to a sender, then never again for that sender.
	AttachOncePerSender AttachmentPolicy = "once_per_sender"
	// AttachNever never attaches media.
	AttachNever AttachmentPolicy = "never"
)

// IsValidAttachmentPolicy checks if the given policy is supported.
func IsValidAttachmentPolicy(p AttachmentPolicy) bool {
	switch p {
	case AttachOnLink, AttachOncePerSender, AttachNever:
		return true
	default:
		return false
	}
}

// urlRegex detects an HTTP(S) link in reply text.
var urlRegex = regexp.MustCompile(`https?://\S+`)

// ContainsLink reports whether the text carries an HTTP(S) URL.
func ContainsLink(text string) bool {
	return urlRegex.MatchString(text)
}

// Dispatcher sends composed replies through the messaging service. Delivery
// failures are logged and swallowed: the inbound webhook must always be
// acknowledged to the provider, or it retries and duplicates side effects.
type Dispatcher struct {
	svc      Service
	history  conversation.Store
	policy   AttachmentPolicy
	mediaURL string
}

// NewDispatcher builds a dispatcher with the given attachment policy and
// media URL. An empty policy means "use the default"; only genuinely
// unrecognized values are warned about. An empty media URL disables
// attachments regardless of policy.
func NewDispatcher(svc Service, history conversation.Store, policy AttachmentPolicy, mediaURL string) *Dispatcher {
	if policy == "" {
		policy = AttachOnLink
	} else if !IsValidAttachmentPolicy(policy) {
		slog.Warn("Dispatcher unknown attachment policy, defaulting to on_link", "policy", policy)
		policy = AttachOnLink
	}
	return &Dispatcher{svc: svc, history: history, policy: policy, mediaURL: mediaURL}
}

// Dispatch sends the reply text to the recipient, attaching media per
// policy. It reports whether the send succeeded and whether media was
// attached; it never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, to, text string) (sent bool, withMedia bool) {
	var mediaURLs []string
	if d.shouldAttach(to, text) {
		mediaURLs = []string{d.mediaURL}
	}

	if err := d.svc.SendMessage(ctx, to, text, mediaURLs); err != nil {
		slog.Error("Dispatcher send failed", "error", err, "to", to, "media", len(mediaURLs) > 0)
		return false, false
	}

	if len(mediaURLs) > 0 {
		d.history.MarkImageSent(to)
	}
	slog.Info("Dispatcher message sent", "to", to, "media", len(mediaURLs) > 0, "text_length", len(text))
	return true, len(mediaURLs) > 0
}

func (d *Dispatcher) shouldAttach(to, text string) bool {
	if d.mediaURL == "" {
		return false
	}
	switch d.policy {
	case AttachOnLink:
		return ContainsLink(text)
	case AttachOncePerSender:
		return ContainsLink(text) && !d.history.HasSentImage(to)
	default:
		return false
	}
}
