package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/contacts"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/conversation"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/intent"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/messaging"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// Result summarizes how one inbound message was handled.
type Result struct {
	// Intent is the classification the reply was based on.
	Intent intent.Intent `json:"intent"`
	// Reply is the outbound text, empty when nothing was sent.
	Reply string `json:"reply,omitempty"`
	// Sent reports whether the reply was delivered to the provider.
	Sent bool `json:"sent"`
	// WithMedia reports whether the reply carried the media attachment.
	WithMedia bool `json:"withMedia"`
	// ManualReview flags the message for a human to look at.
	ManualReview bool `json:"manualReview,omitempty"`
	// Unsubscribed reports that the sender's contact record was removed.
	Unsubscribed bool `json:"unsubscribed,omitempty"`
}

// Engine drives the whole inbound turn: serialize per sender, track the
// contact, classify, compose, dispatch, and record both sides of the
// exchange. All collaborators are injected.
type Engine struct {
	svc        messaging.Service
	history    conversation.Store
	composer   *Composer
	dispatcher *messaging.Dispatcher
	contacts   contacts.Repository
}

// NewEngine builds the inbound pipeline from its collaborators.
func NewEngine(svc messaging.Service, history conversation.Store, composer *Composer, dispatcher *messaging.Dispatcher, repo contacts.Repository) *Engine {
	return &Engine{svc: svc, history: history, composer: composer, dispatcher: dispatcher, contacts: repo}
}

// HandleInbound processes one normalized inbound message end to end.
//
// Collaborator failures inside the turn (language model, provider send,
// contact store) degrade gracefully and are reflected in the Result; an
// error return means the message itself was unusable.
func (e *Engine) HandleInbound(ctx context.Context, msg models.InboundMessage) (*Result, error) {
	sender, err := e.svc.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender number %q: %w", msg.From, err)
	}

	// One turn at a time per sender. Two messages arriving in the same
	// window must not interleave the stage read and the appends.
	release := e.history.Acquire(sender)
	defer release()

	e.trackContact(ctx, sender)
	e.history.Append(sender, models.SpeakerUser, msg.Text)

	res := &Result{Intent: intent.Classify(msg.Text)}

	if intent.IsUnsubscribe(msg.Text) {
		res.Unsubscribed = e.unsubscribe(ctx, sender)
	}

	reply := e.composer.Compose(ctx, sender, msg.Text, res.Intent)
	res.ManualReview = reply.ManualReview
	if !reply.Send {
		slog.Info("Engine no reply for message", "sender", sender, "intent", res.Intent, "manual_review", reply.ManualReview)
		return res, nil
	}

	res.Reply = reply.Text
	res.Sent, res.WithMedia = e.dispatcher.Dispatch(ctx, sender, reply.Text)
	if res.Sent {
		e.history.Append(sender, models.SpeakerBot, reply.Text)
		// The first recorded bot turn moves the positive flow to its
		// terminal stage. Setting it again is harmless.
		e.history.SetStage(sender, conversation.StageHandoffOffered)
	}

	slog.Info("Engine handled inbound message",
		"sender", sender, "intent", res.Intent, "sent", res.Sent, "media", res.WithMedia)
	return res, nil
}

// trackContact creates a pending contact record the first time a sender is
// seen. Store failures are logged and ignored; the reply flow does not
// depend on the contact list.
func (e *Engine) trackContact(ctx context.Context, sender string) {
	if e.contacts == nil {
		return
	}
	release := e.contacts.Acquire()
	defer release()

	_, err := e.contacts.Get(ctx, sender)
	if err == nil {
		return
	}
	if !errors.Is(err, models.ErrContactNotFound) {
		slog.Error("Engine contact lookup failed", "error", err, "sender", sender)
		return
	}
	c := models.Contact{Phone: sender, Status: models.ContactStatusPending}
	if err := e.contacts.Upsert(ctx, c); err != nil {
		slog.Error("Engine contact create failed", "error", err, "sender", sender)
	}
}

// unsubscribe removes the sender from the contact list so the follow-up
// scheduler never messages them again. It waits out any follow-up pass in
// flight; a delete landing mid-pass would be undone by the pass's batch
// save.
func (e *Engine) unsubscribe(ctx context.Context, sender string) bool {
	if e.contacts == nil {
		return false
	}
	release := e.contacts.Acquire()
	defer release()

	if err := e.contacts.Delete(ctx, sender); err != nil {
		slog.Error("Engine unsubscribe failed", "error", err, "sender", sender)
		return false
	}
	slog.Info("Engine contact unsubscribed", "sender", sender)
	return true
}
