// Package conversation provides the process-lifetime conversation history
// store, keyed by sender phone number.
//
// Each sender's record holds a bounded ring of the most recent turns, the
// once-only image flag, and the named stage of the positive-reply flow. The
// store is volatile by design: it is lost on process restart.
package conversation

import (
	"log/slog"
	"sync"

	"github.com/Nadavlistingsync/alexey-chatbot-server/internal/models"
)

// MaxTurns bounds each sender's history; the oldest turn is evicted first.
const MaxTurns = 10

// Stage names the state of the per-sender positive-reply flow.
type Stage string

const (
	// StageNoBotTurns is the initial stage: the assistant has not yet asked
	// permission to hand the sender off to the agent.
	StageNoBotTurns Stage = "no_bot_turns"
	// StageHandoffOffered is the terminal stage: the hand-off has been
	// offered (or confirmed). Further positive replies do not advance it.
	StageHandoffOffered Stage = "handoff_offered"
)

// Store is the injected history abstraction consumed by the reply flow.
type Store interface {
	// Append records a turn for the sender, creating the record on first
	// use and trimming to the most recent MaxTurns entries.
	Append(sender string, speaker models.Speaker, text string)
	// Turns returns the sender's turns in order, empty if unseen.
	Turns(sender string) []models.Turn
	// Stage returns the sender's positive-flow stage.
	Stage(sender string) Stage
	// SetStage updates the sender's positive-flow stage.
	SetStage(sender string, stage Stage)
	// HasSentImage reports whether a media attachment was ever sent.
	HasSentImage(sender string) bool
	// MarkImageSent latches the image flag; it is never reset.
	MarkImageSent(sender string)
	// Acquire serializes turn processing for one sender. The returned
	// release function must be called when the turn is complete.
	Acquire(sender string) (release func())
}

// History is the in-memory Store implementation.
type History struct {
	mu       sync.RWMutex
	records  map[string]*record
	maxTurns int
}

type record struct {
	// turnMu serializes whole-turn processing for the sender so the stage
	// transition and the appends it depends on cannot interleave across
	// concurrent webhook invocations.
	turnMu sync.Mutex
	// mu guards the fields below.
	mu           sync.Mutex
	turns        []models.Turn
	hasSentImage bool
	stage        Stage
}

// NewHistory creates an empty history store bounded to MaxTurns per sender.
func NewHistory() *History {
	return &History{records: make(map[string]*record), maxTurns: MaxTurns}
}

// get returns the sender's record, creating it on first use.
func (h *History) get(sender string) *record {
	h.mu.RLock()
	rec, ok := h.records[sender]
	h.mu.RUnlock()
	if ok {
		return rec
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if rec, ok = h.records[sender]; ok {
		return rec
	}
	rec = &record{stage: StageNoBotTurns}
	h.records[sender] = rec
	slog.Debug("History created record for new sender", "sender", sender)
	return rec
}

// Append records a turn and trims the buffer to the most recent MaxTurns.
func (h *History) Append(sender string, speaker models.Speaker, text string) {
	rec := h.get(sender)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.turns = append(rec.turns, models.Turn{Speaker: speaker, Text: text})
	if len(rec.turns) > h.maxTurns {
		rec.turns = rec.turns[len(rec.turns)-h.maxTurns:]
	}
	slog.Debug("History appended turn", "sender", sender, "speaker", speaker, "turns", len(rec.turns))
}

// Turns returns a copy of the sender's turns, empty if unseen.
func (h *History) Turns(sender string) []models.Turn {
	h.mu.RLock()
	rec, ok := h.records[sender]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]models.Turn, len(rec.turns))
	copy(out, rec.turns)
	return out
}

// Stage returns the sender's positive-flow stage.
func (h *History) Stage(sender string) Stage {
	rec := h.get(sender)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.stage
}

// SetStage updates the sender's positive-flow stage.
func (h *History) SetStage(sender string, stage Stage) {
	rec := h.get(sender)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.stage = stage
}

// HasSentImage reports whether a media attachment was ever sent.
func (h *History) HasSentImage(sender string) bool {
	rec := h.get(sender)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.hasSentImage
}

// MarkImageSent latches the image flag for the sender.
func (h *History) MarkImageSent(sender string) {
	rec := h.get(sender)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.hasSentImage = true
}

// Acquire locks turn processing for the sender and returns the release.
func (h *History) Acquire(sender string) func() {
	rec := h.get(sender)
	rec.turnMu.Lock()
	return rec.turnMu.Unlock
}
