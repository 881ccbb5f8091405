// Package followup implements the daily drip sequence: a fixed script of
// messages sent to contacts that have not responded, at most one per day.
package followup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/contacts"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/messaging"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// MinInterval is the minimum elapsed time between two follow-ups to the same
// contact.
const MinInterval = 24 * time.Hour

// Script is the ordered drip sequence. A contact's FollowUpCount indexes the
// next message; once it reaches len(Script) the contact is exhausted.
var Script = []string{
	"Just checking in — Alexey's experience with 200+ sales might be exactly what you need. Want to see a quick intro video?",
	"Still open to selling? Many of Alexey's clients say watching his videos helped them decide. Want the link?",
	"Alexey specializes in getting top dollar. Curious how he does it? His clients love the way he explains things.",
	"Not sure if now's the time to sell? Alexey's insights might help — want to check them out?",
	"Final follow-up — Alexey's helped many sellers just like you. If you're curious, I can send his site or a quick video!",
}

// ContactResult reports the outcome for one contact in a run.
type ContactResult struct {
	Phone   string `json:"phone"`
	Sent    bool   `json:"sent"`
	Message string `json:"msg,omitempty"`
	Error   string `json:"error,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

// Summary aggregates one scheduler run.
type Summary struct {
	Processed int             `json:"processed"`
	Sent      int             `json:"sent"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Results   []ContactResult `json:"results"`
}

// Runner walks the contact list and sends due follow-ups. The clock is
// injected so tests can pin time.
type Runner struct {
	svc      messaging.Service
	contacts contacts.Repository
	now      func() time.Time
}

// Opts holds configuration for the follow-up runner.
type Opts struct {
	Now func() time.Time
}

// Option configures the follow-up runner.
type Option func(*Opts)

// WithClock overrides the runner's time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// NewRunner builds a follow-up runner over the messaging service and contact
// repository.
func NewRunner(svc messaging.Service, repo contacts.Repository, opts ...Option) *Runner {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{svc: svc, contacts: repo, now: cfg.Now}
}

// Run executes one pass over the contact list. A contact's record is mutated
// only after its message was accepted by the provider, so a failed send is
// retried on the next run. The updated list is written back in one batch.
//
// The repository's run-level lock is held for the whole pass: the load, the
// sends, and the batch save form one read-modify-write, and contact
// mutations arriving mid-run (unsubscribes) are serialized after it.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	release := r.contacts.Acquire()
	defer release()

	list, err := r.contacts.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}

	now := r.now()
	summary := &Summary{Processed: len(list)}

	for i := range list {
		c := &list[i]
		if reason := r.skipReason(*c, now); reason != "" {
			summary.Skipped++
			summary.Results = append(summary.Results, ContactResult{Phone: c.Phone, Skipped: reason})
			continue
		}

		msg := Script[c.FollowUpCount]
		if err := r.svc.SendMessage(ctx, c.Phone, msg, nil); err != nil {
			slog.Error("Followup send failed", "error", err, "phone", c.Phone, "step", c.FollowUpCount)
			summary.Failed++
			summary.Results = append(summary.Results, ContactResult{Phone: c.Phone, Error: err.Error()})
			continue
		}

		c.FollowUpCount++
		sentAt := now
		c.LastFollowUpDate = &sentAt
		summary.Sent++
		summary.Results = append(summary.Results, ContactResult{Phone: c.Phone, Sent: true, Message: msg})
		slog.Info("Followup sent", "phone", c.Phone, "step", c.FollowUpCount)
	}

	if err := r.contacts.SaveAll(ctx, list); err != nil {
		return summary, fmt.Errorf("failed to save contacts: %w", err)
	}

	slog.Info("Followup run complete",
		"processed", summary.Processed, "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// skipReason reports why a contact is not due, empty when it should be
// messaged now. A contact with no recorded send is always due.
func (r *Runner) skipReason(c models.Contact, now time.Time) string {
	if c.Exhausted() {
		return "sequence exhausted"
	}
	if c.LastFollowUpDate != nil && now.Sub(*c.LastFollowUpDate) < MinInterval {
		return "throttled"
	}
	return ""
}
