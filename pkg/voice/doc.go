// Package voice speaks confirmations and records spoken commands.
//
// A Pipeline wraps three collaborators: a text-to-speech provider, a
// transcriber and the audio devices. Both entry points return immediately
// and do their work on a goroutine:
//
//	p := voice.NewPipeline(synth, whisper, inbox, voice.DefaultConfig())
//	p.Speak("Clearing the cart...")
//	p.Listen() // records 2s, transcribes, pushes into inbox
//
// Listen delivers through the Inbox, an unbounded FIFO that the perception
// loop drains one transcript per frame. The web dashboard pushes typed
// transcripts into the same Inbox.
//
// # Utterance states
//
// Each Listen moves through Idle → Recording → Transcribing → Delivered.
// Any failure (no microphone, transcription error, empty transcript)
// returns to Idle and delivers nothing.
//
// # Latency
//
// A MetricsCollector records per-stage timings for the last 100 utterances.
package voice
