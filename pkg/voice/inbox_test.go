package voice

import (
	"sync"
	"testing"
	"time"
)

func TestInboxFIFO(t *testing.T) {
	b := NewInbox()
	if _, ok := b.TryPop(); ok {
		t.Fatal("empty inbox returned a transcript")
	}

	for _, text := range []string{"first", "second", "third"} {
		b.Push(NewTranscript(text, SourceVoice))
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d", b.Len())
	}

	for _, want := range []string{"first", "second", "third"} {
		got, ok := b.TryPop()
		if !ok || got.Text != want {
			t.Errorf("TryPop = %q, %v, want %q", got.Text, ok, want)
		}
	}
	if _, ok := b.TryPop(); ok {
		t.Error("drained inbox returned a transcript")
	}
}

func TestInboxConcurrentProducers(t *testing.T) {
	b := NewInbox()
	const producers, each = 8, 250

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				b.Push(NewTranscript("add", SourceWeb))
			}
		}()
	}

	popped := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if _, ok := b.TryPop(); ok {
			popped++
			continue
		}
		select {
		case <-done:
			for {
				if _, ok := b.TryPop(); !ok {
					break
				}
				popped++
			}
			if popped != producers*each {
				t.Errorf("popped %d, want %d", popped, producers*each)
			}
			return
		default:
		}
	}
}

func TestNewTranscript(t *testing.T) {
	before := time.Now()
	a := NewTranscript("clear the cart", SourceWeb)
	b := NewTranscript("clear the cart", SourceWeb)

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs = %q, %q", a.ID, b.ID)
	}
	if a.At.Before(before) || a.Source != SourceWeb {
		t.Errorf("transcript = %+v", a)
	}
}

func TestInboxPendingIsCopy(t *testing.T) {
	b := NewInbox()
	b.Push(NewTranscript("one", SourceVoice))

	pending := b.Pending()
	pending[0].Text = "changed"

	got, _ := b.TryPop()
	if got.Text != "one" {
		t.Errorf("Pending aliases the queue: %q", got.Text)
	}
}
