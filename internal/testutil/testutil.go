// Package testutil provides common test utilities and helpers for the
// outreach server tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/api"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/contacts"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/conversation"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/flow"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/followup"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/genai"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/messaging"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/telnyx"
)

// StubGenerator is a canned language-model double for flow tests.
type StubGenerator struct {
	Reply string
	Err   error
	Calls int
}

// Generate returns the canned reply or error.
func (s *StubGenerator) Generate(ctx context.Context, messages []genai.Message, temperature float64) (string, error) {
	s.Calls++
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// TestServer bundles an API server with the in-memory fakes behind it so
// tests can inspect side effects.
type TestServer struct {
	Server    *api.Server
	Client    *telnyx.MockClient
	History   *conversation.History
	Contacts  contacts.Repository
	Generator *StubGenerator
}

// NewTestServer creates a test API server with in-memory dependencies.
// This centralizes the wiring used across handler test files.
func NewTestServer() *TestServer {
	client := telnyx.NewMockClient()
	svc := messaging.NewService(client)
	history := conversation.NewHistory()
	gen := &StubGenerator{Reply: "Happy to help! Check out https://www.zillow.com/profile/Alexey%20Kogan"}
	composer := flow.NewComposer(gen, history)
	dispatcher := messaging.NewDispatcher(svc, history, messaging.AttachOnLink, "https://example.com/card.png")
	repo := contacts.NewInMemoryRepository()
	engine := flow.NewEngine(svc, history, composer, dispatcher, repo)
	runner := followup.NewRunner(svc, repo)

	return &TestServer{
		Server:    api.NewServer(engine, runner),
		Client:    client,
		History:   history,
		Contacts:  repo,
		Generator: gen,
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// TelnyxWebhook builds a message.received envelope for tests.
func TelnyxWebhook(from, to, text string) telnyx.WebhookPayload {
	return telnyx.WebhookPayload{
		Data: telnyx.WebhookData{
			EventType: telnyx.EventTypeMessageReceived,
			Payload: telnyx.MessagePayload{
				Text: text,
				From: telnyx.PhoneEndpoint{PhoneNumber: from},
				To:   []telnyx.PhoneEndpoint{{PhoneNumber: to}},
			},
		},
	}
}
