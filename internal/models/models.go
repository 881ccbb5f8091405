// Package models defines the core data structures for the outreach service.
//
// It includes the inbound message triple, conversation turns, persisted
// contacts, and the JSON envelopes shared across modules.
package models

import (
	"errors"
	"time"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	// SpeakerUser marks a turn sent by the external phone number.
	SpeakerUser Speaker = "User"
	// SpeakerBot marks a turn produced by the assistant.
	SpeakerBot Speaker = "Bot"
)

// Turn is one recorded line in a conversation.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// InboundMessage is the canonical normalized form of a provider webhook event.
type InboundMessage struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// ContactStatusPending is the status assigned to newly observed contacts.
// The status field is advisory only; no logic branches on it.
const ContactStatusPending = "pending"

// MaxFollowUps is the length of the scripted follow-up sequence. A contact
// whose FollowUpCount has reached this value is permanently excluded from
// further sends.
const MaxFollowUps = 5

// Contact is a persisted outreach target, keyed by phone number.
// JSON field names match the legacy contacts.json layout.
type Contact struct {
	Phone            string     `json:"phone"`
	FollowUpCount    int        `json:"followUpCount"`
	LastFollowUpDate *time.Time `json:"lastFollowUpDate"`
	Status           string     `json:"status,omitempty"`
}

// Exhausted reports whether the contact has received the full scripted
// follow-up sequence.
func (c Contact) Exhausted() bool {
	return c.FollowUpCount >= MaxFollowUps
}

// Error variables shared across modules.
var (
	// ErrInvalidPayload indicates the webhook envelope had no recognizable
	// event type. Callers must acknowledge the event, not surface an error.
	ErrInvalidPayload = errors.New("invalid webhook payload structure")
	// ErrContactNotFound indicates a contact lookup by phone found nothing.
	ErrContactNotFound = errors.New("contact not found")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusIgnored indicates an event was recognized and intentionally
	// not acted on (non-message event types, listed-intent silence).
	APIStatusIgnored APIStatus = "ignored"
)

// APIResponse is the standard JSON envelope returned by every endpoint.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Ignored creates a response acknowledging an intentionally skipped event.
func Ignored(message string) APIResponse {
	return APIResponse{Status: string(APIStatusIgnored), Message: message}
}
