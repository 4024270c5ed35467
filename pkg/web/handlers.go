package web

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-shopassist/pkg/hub"
	"github.com/teslashibe/go-shopassist/pkg/voice"
)

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.State())
}

func (s *Server) handleCart(c *fiber.Ctx) error {
	return c.JSON(s.cartView())
}

func (s *Server) handleStreams(c *fiber.Ctx) error {
	return c.JSON(map[string]hub.Stats{
		s.statusHub.Name(): s.statusHub.Stats(),
		s.logHub.Name():    s.logHub.Stats(),
		s.cameraHub.Name(): s.cameraHub.Stats(),
	})
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	if s.inbox == nil {
		return c.JSON([]voice.Transcript{})
	}
	pending := s.inbox.Pending()
	if len(pending) > maxTranscripts {
		pending = pending[:maxTranscripts]
	}
	return c.JSON(pending)
}

// SubmitTranscriptRequest is the body of POST /api/transcripts.
type SubmitTranscriptRequest struct {
	Text string `json:"text"`
}

// handleSubmitTranscript queues typed text exactly like a spoken command.
func (s *Server) handleSubmitTranscript(c *fiber.Ctx) error {
	if s.inbox == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "voice inbox not configured"})
	}

	var req SubmitTranscriptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	t := voice.NewTranscript(text, voice.SourceWeb)
	s.inbox.Push(t)
	s.AddLog("transcript", "web: "+text)
	if s.OnTranscript != nil {
		s.OnTranscript(t)
	}
	return c.Status(fiber.StatusAccepted).JSON(t)
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if data, err := json.Marshal(s.State()); err == nil {
		client.Send(hub.Text(data))
	}
	client.Run()
}

func (s *Server) handleLogsWS(c *websocket.Conn) {
	client := hub.NewClient(s.logHub, c)
	for _, entry := range s.Logs() {
		if data, err := json.Marshal(entry); err == nil {
			client.Send(hub.Text(data))
		}
	}
	client.Run()
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
