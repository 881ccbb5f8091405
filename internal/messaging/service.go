// Package messaging provides the pluggable message delivery abstraction and
// the outbound dispatcher that applies the attachment policy.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

// Sender is the provider-level send capability. Both the Telnyx and Twilio
// clients satisfy it, as do test mocks.
type Sender interface {
	SendMessage(ctx context.Context, to, text string, mediaURLs []string) error
}

// Service defines the message delivery abstraction consumed by the flow
// engine and the follow-up runner.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient phone number, returning it in +<digits> form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient, optionally with media.
	SendMessage(ctx context.Context, to, text string, mediaURLs []string) error
}

// nonDigitRegex strips everything but digits during canonicalization.
var nonDigitRegex = regexp.MustCompile(`[^0-9]`)

// minPhoneDigits is the minimum digit count accepted as a phone number.
const minPhoneDigits = 6

// SenderService adapts a provider Sender into a Service with shared
// recipient validation.
type SenderService struct {
	sender Sender
}

// NewService wraps a provider client in the Service abstraction.
func NewService(sender Sender) *SenderService {
	return &SenderService{sender: sender}
}

// ValidateAndCanonicalizeRecipient strips formatting characters and returns
// the number in +<digits> form. Numbers with fewer than six digits are
// rejected.
func (s *SenderService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	digits := nonDigitRegex.ReplaceAllString(recipient, "")
	if digits == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(digits) < minPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", digits, minPhoneDigits)
	}

	canonical := "+" + digits
	if canonical != recipient {
		slog.Debug("SenderService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMessage validates the recipient and delegates to the provider.
func (s *SenderService) SendMessage(ctx context.Context, to, text string, mediaURLs []string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("SenderService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.sender.SendMessage(ctx, canonicalTo, text, mediaURLs)
}
