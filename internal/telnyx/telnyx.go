// Package telnyx wraps the Telnyx Messaging REST API and the inbound webhook
// envelope it delivers.
//
// Telnyx has no official Go SDK, so the client speaks to POST /v2/messages
// directly with the standard library HTTP client.
package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// DefaultBaseURL is the Telnyx API v2 endpoint.
const DefaultBaseURL = "https://api.telnyx.com/v2"

// defaultHTTPTimeout bounds a single send call.
const defaultHTTPTimeout = 15 * time.Second

// MessageSender is the narrow send capability consumed by the messaging
// layer. MediaURLs may be nil for a plain SMS.
type MessageSender interface {
	SendMessage(ctx context.Context, to, text string, mediaURLs []string) error
}

// Opts holds configuration options for the Telnyx client.
type Opts struct {
	APIKey             string
	FromNumber         string
	MessagingProfileID string
	BaseURL            string
	HTTPClient         *http.Client
}

// Option defines a configuration option for the Telnyx client.
type Option func(*Opts)

// WithAPIKey sets the Telnyx API v2 key, overriding $TELNYX_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithFromNumber sets the provisioned sender number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithMessagingProfileID sets the messaging profile attached to sends.
func WithMessagingProfileID(id string) Option {
	return func(o *Opts) { o.MessagingProfileID = id }
}

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends SMS/MMS messages through the Telnyx REST API.
type Client struct {
	apiKey             string
	fromNumber         string
	messagingProfileID string
	baseURL            string
	httpClient         *http.Client
}

// NewClient builds a Telnyx client, falling back to TELNYX_API_KEY,
// TELNYX_NUMBER, and TELNYX_MESSAGING_PROFILE_ID environment variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("TELNYX_API_KEY")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TELNYX_NUMBER")
	}
	if cfg.MessagingProfileID == "" {
		cfg.MessagingProfileID = os.Getenv("TELNYX_MESSAGING_PROFILE_ID")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	slog.Debug("Telnyx client config loaded",
		"api_key_set", cfg.APIKey != "",
		"from_number_set", cfg.FromNumber != "",
		"messaging_profile_set", cfg.MessagingProfileID != "")

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Telnyx API key must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("Telnyx sender number must be provided")
	}

	return &Client{
		apiKey:             cfg.APIKey,
		fromNumber:         cfg.FromNumber,
		messagingProfileID: cfg.MessagingProfileID,
		baseURL:            cfg.BaseURL,
		httpClient:         cfg.HTTPClient,
	}, nil
}

// createMessageRequest is the JSON body sent to POST /v2/messages.
type createMessageRequest struct {
	From               string   `json:"from"`
	To                 string   `json:"to"`
	Text               string   `json:"text"`
	MessagingProfileID string   `json:"messaging_profile_id,omitempty"`
	MediaURLs          []string `json:"media_urls,omitempty"`
}

// createMessageResponse captures the fields we care about for logging.
type createMessageResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// SendMessage dispatches one message via Telnyx. A non-nil error means the
// HTTP request failed or Telnyx rejected the message; the caller decides
// whether that failure is recoverable.
func (c *Client) SendMessage(ctx context.Context, to, text string, mediaURLs []string) error {
	body, err := json.Marshal(createMessageRequest{
		From:               c.fromNumber,
		To:                 to,
		Text:               text,
		MessagingProfileID: c.messagingProfileID,
		MediaURLs:          mediaURLs,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Telnyx SendMessage request failed", "error", err, "to", to)
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Telnyx SendMessage rejected", "status", resp.StatusCode, "to", to)
		return fmt.Errorf("telnyx returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed createMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && len(parsed.Errors) > 0 {
		return fmt.Errorf("telnyx error %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Detail)
	}

	slog.Debug("Telnyx message sent", "to", to, "message_id", parsed.Data.ID, "media", len(mediaURLs) > 0)
	return nil
}

// MockClient records sent messages for tests.
type MockClient struct {
	SentMessages []SentMessage
	Err          error
}

// SentMessage is one recorded MockClient send.
type SentMessage struct {
	To        string
	Text      string
	MediaURLs []string
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendMessage records the message, or returns the configured error.
func (m *MockClient) SendMessage(ctx context.Context, to, text string, mediaURLs []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Text: text, MediaURLs: mediaURLs})
	return nil
}
