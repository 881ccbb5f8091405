// Package intent classifies inbound SMS text into a small set of intents
// that gate whether and how the assistant replies.
//
// The pattern lists are data, not logic: every handler revision that needs
// keyword gating consults this single classifier.
package intent

import "strings"

// Intent is the classification of an inbound message.
type Intent string

const (
	// IntentListed means the property is already on the market. Listed
	// messages never receive a reply; they may be flagged for manual review.
	IntentListed Intent = "listed"
	// IntentNegative means a decline or opt-out.
	IntentNegative Intent = "negative"
	// IntentPositive means an affirmative, keep-the-conversation-going reply.
	IntentPositive Intent = "positive"
	// IntentUnclassified means no pattern matched; the language model drafts
	// the reply.
	IntentUnclassified Intent = "unclassified"
)

// Phrase lists are matched as lowercase substrings. Order of the categories
// is load-bearing: Listed wins over Negative wins over Positive, so an
// "already listed" message never triggers a reply even when it also contains
// an affirmative or decline phrase.
var (
	listedPhrases = []string{
		"already listed",
		"currently listed",
		"on the market",
		"listed with an agent",
		"my wife is the listing agent",
	}

	negativePhrases = []string{
		"not interested",
		"no thanks",
		"not selling",
		"wrong number",
		"stop",
		"unsubscribe",
		"take me off your list",
		"remove me",
		"off market",
		"not my property",
		"how did you get my number",
		"i'm a realtor",
		"im a realtor",
		"broker owner",
	}

	positivePhrases = []string{
		"yes",
		"sure",
		"interested",
		"still want to sell",
		"send me an offer",
		"bring a buyer",
		"do you want to buy",
		"how much",
		"ok",
		"sounds good",
	}
)

// Unsubscribe keywords are the subset of decline phrases that also remove the
// sender's contact record entirely.
var unsubscribePhrases = []string{
	"stop",
	"unsubscribe",
	"take me off your list",
	"remove me",
}

// Classify returns the intent of an inbound message. Matching is
// case-insensitive substring containment, evaluated Listed, then Negative,
// then Positive; the first category with any match wins.
func Classify(text string) Intent {
	normalized := strings.ToLower(text)
	switch {
	case containsAny(normalized, listedPhrases):
		return IntentListed
	case containsAny(normalized, negativePhrases):
		return IntentNegative
	case containsAny(normalized, positivePhrases):
		return IntentPositive
	default:
		return IntentUnclassified
	}
}

// IsUnsubscribe reports whether the message asks to stop all contact.
func IsUnsubscribe(text string) bool {
	return containsAny(strings.ToLower(text), unsubscribePhrases)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
