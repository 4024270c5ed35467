package voice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transcript sources.
const (
	SourceVoice = "voice"
	SourceWeb   = "web"
)

// Transcript is one recognized (or typed) utterance waiting for dispatch.
type Transcript struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// NewTranscript stamps text with a fresh ID and the current time.
func NewTranscript(text, source string) Transcript {
	return Transcript{
		ID:     uuid.NewString(),
		Text:   text,
		Source: source,
		At:     time.Now(),
	}
}

// Inbox is an unbounded FIFO of transcripts. Push never blocks and TryPop
// never waits, so producers on background goroutines cannot stall the
// perception loop.
type Inbox struct {
	mu    sync.Mutex
	items []Transcript
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Push appends t.
func (b *Inbox) Push(t Transcript) {
	b.mu.Lock()
	b.items = append(b.items, t)
	b.mu.Unlock()
}

// TryPop removes and returns the oldest transcript, or ok=false when empty.
func (b *Inbox) TryPop() (t Transcript, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return Transcript{}, false
	}
	t = b.items[0]
	b.items[0] = Transcript{}
	b.items = b.items[1:]
	if len(b.items) == 0 {
		b.items = nil
	}
	return t, true
}

// Len returns the number of queued transcripts.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Pending returns a copy of the queued transcripts, oldest first.
func (b *Inbox) Pending() []Transcript {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transcript, len(b.items))
	copy(out, b.items)
	return out
}
