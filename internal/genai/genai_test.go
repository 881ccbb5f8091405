package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func testClient(mock *mockChatService) *Client {
	return &Client{chat: mock, model: openai.ChatModelGPT4oMini, timeout: time.Second}
}

func TestGenerate_Success(t *testing.T) {
	mock := &mockChatService{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "  Hello World  "}},
			},
		},
	}
	client := testClient(mock)

	out, err := client.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are the SMS assistant Bot Albert."},
		{Role: RoleUser, Content: "hi"},
	}, 0.7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected trimmed 'Hello World', got %q", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected 2 messages in request, got %d", len(mock.params.Messages))
	}
	if !mock.params.Temperature.Valid() || mock.params.Temperature.Value != 0.7 {
		t.Errorf("temperature not propagated: %+v", mock.params.Temperature)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	client := testClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0.7)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := testClient(&mockChatService{resp: &openai.ChatCompletion{}})
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0.7)
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerate_EmptyContent(t *testing.T) {
	mock := &mockChatService{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "   "}},
			},
		},
	}
	client := testClient(mock)
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0.7)
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-3.5-turbo"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.model != "gpt-3.5-turbo" {
		t.Errorf("model option not applied: %s", cli.model)
	}
	if cli.chat == nil {
		t.Error("chat completion service not wired")
	}
}
