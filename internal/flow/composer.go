// Package flow contains the inbound reply pipeline: classify the message,
// compose a reply from canned text or the language model, and drive the
// conversation state forward.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/conversation"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/genai"
	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/intent"
)

// MaxMessageLength is the SMS length limit the persona prompt asks the model
// to respect.
const MaxMessageLength = 280

// DefaultTemperature is the sampling temperature for generated replies.
const DefaultTemperature = 0.7

// FallbackReply is substituted whenever the language model fails.
const FallbackReply = "Sorry, I had trouble generating a response. Can you please rephrase that?"

// Canned replies for classified messages.
const (
	// negativeReply acknowledges a decline or opt-out.
	negativeReply = "No problem, thanks for letting me know. I won't reach out again. Have a great day!"
	// positiveAskReply is the first-contact positive reply: ask permission
	// before handing off to the agent.
	positiveAskReply = "Great to hear! Would it be OK if I share a bit more about your options and have Alexey reach out to you directly?"
	// positiveHandoffReply confirms the hand-off once the conversation has
	// already had a bot turn.
	positiveHandoffReply = "Perfect, I'll have Alexey reach out to you shortly. Thanks for your time!"
)

// personaPrompt is the instruction block given to the language model for
// unclassified messages. The conversation history and new message are
// appended per sender.
const personaPrompt = `You are Bot Albert, an SMS assistant for real estate agent Alexey Kogan.

Goals:
1. Convince the seller that Alexey is one of the top agents in the area. Mention he has 200+ sales and stellar reviews.
2. Your MAIN GOAL is to get them to watch Alexey's videos or visit his website to learn more.
3. Rotate message tone to sound natural, helpful, and human, like a friendly assistant who respects their time.
4. Send one link per message. You can start with either:
   - https://www.zillow.com/profile/Alexey%%20Kogan
Choose based on what feels more relevant in context.
5. NEVER ask to book a call unless they bring it up.
6. If the property is already listed or they say no, stop messaging.
7. All messages must be brief (under %d characters), polite, and professional.
8. Do not repeat the same facts (like "200+ sales" or the Zillow link) in every message. Vary your pitch with different angles such as success stories, awards, professionalism, or a soft reminder.

Conversation history:
%s

New message from user:
"%s"

Craft a single SMS message under %d characters based on the goals above.`

// Generator is the language-model collaborator consumed by the composer.
type Generator interface {
	Generate(ctx context.Context, messages []genai.Message, temperature float64) (string, error)
}

// Reply is the composer's verdict for one inbound message.
type Reply struct {
	// Text is the outbound reply body; empty when Send is false.
	Text string
	// Send reports whether a reply should go out at all. Listed messages
	// are dropped without a reply.
	Send bool
	// ManualReview flags the message for a human to look at.
	ManualReview bool
}

// Composer turns a classified inbound message into a reply.
type Composer struct {
	gen     Generator
	history conversation.Store
}

// NewComposer builds a composer over the given language model and history.
func NewComposer(gen Generator, history conversation.Store) *Composer {
	return &Composer{gen: gen, history: history}
}

// Compose returns the reply for the sender's message under the given intent.
// It never returns an error: language-model failures degrade to the fixed
// fallback reply.
func (c *Composer) Compose(ctx context.Context, sender, text string, cls intent.Intent) Reply {
	switch cls {
	case intent.IntentListed:
		slog.Info("Composer listed message, no reply", "sender", sender)
		return Reply{Send: false, ManualReview: true}
	case intent.IntentNegative:
		return Reply{Text: negativeReply, Send: true}
	case intent.IntentPositive:
		if c.history.Stage(sender) == conversation.StageHandoffOffered {
			return Reply{Text: positiveHandoffReply, Send: true}
		}
		return Reply{Text: positiveAskReply, Send: true}
	default:
		return Reply{Text: c.generate(ctx, sender, text), Send: true}
	}
}

// generate drafts a reply with the language model, falling back to the fixed
// apology on any failure.
func (c *Composer) generate(ctx context.Context, sender, text string) string {
	prompt := c.buildPrompt(sender, text)
	reply, err := c.gen.Generate(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: "You are the SMS assistant Bot Albert."},
		{Role: genai.RoleUser, Content: prompt},
	}, DefaultTemperature)
	if err != nil {
		slog.Error("Composer generation failed, using fallback", "error", err, "sender", sender)
		return FallbackReply
	}
	return reply
}

// buildPrompt renders the persona prompt with the sender's trimmed history
// and the new message.
func (c *Composer) buildPrompt(sender, text string) string {
	turns := c.history.Turns(sender)
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Speaker, t.Text))
	}
	return fmt.Sprintf(personaPrompt, MaxMessageLength, strings.Join(lines, "\n"), text, MaxMessageLength)
}
