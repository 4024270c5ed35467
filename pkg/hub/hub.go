// Package hub fans dashboard updates out to websocket clients.
//
// Each stream (state, logs, camera) owns one Hub. Producers call Broadcast
// from any goroutine and never block; Run owns the client set.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// Kind is the websocket frame type of a Message.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

// Message is one payload for every client of a hub.
type Message struct {
	Kind Kind
	Data []byte
}

// Text wraps encoded JSON.
func Text(data []byte) Message { return Message{Kind: KindText, Data: data} }

// Binary wraps raw bytes such as a JPEG frame.
func Binary(data []byte) Message { return Message{Kind: KindBinary, Data: data} }

// SlowPolicy decides what happens to a client whose queue is full.
type SlowPolicy int

const (
	// DropClient disconnects the client. Streams where every message
	// matters (state, logs) use it so a client never shows a gap.
	DropClient SlowPolicy = iota

	// SkipMessage keeps the client and discards the message. The camera
	// stream uses it: the next frame supersedes the lost one.
	SkipMessage
)

// Option configures a Hub.
type Option func(*Hub)

// WithSlowPolicy sets the slow client policy. The default is DropClient.
func WithSlowPolicy(p SlowPolicy) Option { return func(h *Hub) { h.policy = p } }

// Hub broadcasts to the clients of one stream.
type Hub struct {
	name   string
	policy SlowPolicy
	logger *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	count   atomic.Int32
	running atomic.Bool
	dropped atomic.Uint64 // broadcasts lost to a full hub queue
	skipped atomic.Uint64 // per-client messages lost under SkipMessage
}

// New creates a hub. A nil logger uses slog.Default.
func New(name string, logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "stream", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves the hub until ctx is done, then closes every client. Call it
// once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int32(len(h.clients)))
			h.logger.Debug("client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.logger.Debug("client disconnected", "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg Message) {
	for c := range h.clients {
		select {
		case c.send <- msg:
			continue
		default:
		}
		if h.policy == SkipMessage {
			h.skipped.Add(1)
			continue
		}
		h.remove(c)
		h.logger.Warn("disconnected slow client", "clients", len(h.clients))
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int32(len(h.clients)))
}

// Broadcast queues msg for every client without blocking. When the hub
// queue is full the message is lost.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		if h.dropped.Add(1)%100 == 1 {
			h.logger.Warn("broadcast queue full", "dropped", h.dropped.Load())
		}
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Text(data))
	return nil
}

// BroadcastBinary broadcasts raw bytes.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Binary(data))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool { return h.running.Load() }

// Name returns the stream name.
func (h *Hub) Name() string { return h.name }

// Stats counts lost messages.
type Stats struct {
	Clients int    `json:"clients"`
	Dropped uint64 `json:"dropped"`
	Skipped uint64 `json:"skipped"`
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	return Stats{Clients: h.ClientCount(), Dropped: h.dropped.Load(), Skipped: h.skipped.Load()}
}
