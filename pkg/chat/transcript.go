package chat

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Entry is one transcript line. Pending marks the assistant placeholder
// shown while a request is in flight; Err marks a failure entry.
type Entry struct {
	ID      string    `json:"id"`
	Sender  Sender    `json:"sender"`
	Text    string    `json:"text"`
	Sources []string  `json:"sources,omitempty"`
	Err     bool      `json:"error,omitempty"`
	Pending bool      `json:"pending,omitempty"`
	Time    time.Time `json:"time"`
}

// Metrics holds the retrieval numbers from the latest successful reply.
// Valid stays false until the first success so fronts can render
// placeholders instead of zeros.
type Metrics struct {
	LatencySeconds float64 `json:"latency_seconds"`
	TopSimilarity  float64 `json:"top_similarity"`
	Valid          bool    `json:"valid"`
}

// Transcript is the ordered conversation history. It is not safe for
// concurrent use; the controller serializes access.
type Transcript struct {
	entries []Entry
}

// Append stamps the entry with an ID and timestamp and adds it.
func (t *Transcript) Append(e Entry) Entry {
	e.ID = uuid.NewString()
	e.Time = time.Now()
	t.entries = append(t.entries, e)
	return e
}

// Resolve replaces the entry with the given ID in place, keeping its ID
// and restamping its time. Returns the zero Entry when the ID is gone.
func (t *Transcript) Resolve(id string, e Entry) (Entry, bool) {
	for i := range t.entries {
		if t.entries[i].ID == id {
			e.ID = id
			e.Time = time.Now()
			t.entries[i] = e
			return e, true
		}
	}
	return Entry{}, false
}

func (t *Transcript) Clear() {
	t.entries = nil
}

// Entries returns a copy safe to hand to fronts.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	return len(t.entries)
}
