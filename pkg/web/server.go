// Package web serves the shop assistant dashboard: JSON state, a log
// buffer, live websocket streams and Prometheus metrics.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/teslashibe/go-shopassist/pkg/catalog"
	"github.com/teslashibe/go-shopassist/pkg/hub"
	"github.com/teslashibe/go-shopassist/pkg/scene"
	"github.com/teslashibe/go-shopassist/pkg/voice"
)

const (
	maxLogs        = 500
	maxTranscripts = 100
)

// Cart is the read side of the shopping cart.
type Cart interface {
	Items() []catalog.Product
	TotalText() string
	Len() int
}

// Inbox receives typed transcripts.
type Inbox interface {
	Push(t voice.Transcript)
	Pending() []voice.Transcript
}

// ProductView is a detected barcode as shown on the dashboard.
type ProductView struct {
	Payload    string `json:"payload"`
	Format     string `json:"format"`
	Label      string `json:"label"`
	Recognized bool   `json:"recognized"`
}

// CartView is the cart as shown on the dashboard.
type CartView struct {
	Items []catalog.Product `json:"items"`
	Count int               `json:"count"`
	Total string            `json:"total"`
}

// State is the assistant status pushed to dashboard clients.
type State struct {
	Frames           uint64        `json:"frames"`
	VoiceState       string        `json:"voice_state"`
	ShowShoppingList bool          `json:"show_shopping_list"`
	Faces            []scene.Face  `json:"faces"`
	Products         []ProductView `json:"products"`
	Vocabulary       []string      `json:"vocabulary"`
	LastTranscript   string        `json:"last_transcript"`
	LastCommand      string        `json:"last_command"`
	CatalogProducts  int           `json:"catalog_products"`
	CatalogBarcodes  int           `json:"catalog_barcodes"`
	Cart             CartView      `json:"cart"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// LogEntry is one dashboard log line.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, warn, error, command, transcript
	Message string `json:"message"`
}

// Config wires a Server. Metrics is optional.
type Config struct {
	Port      string
	StaticDir string
	Cart      Cart
	Inbox     Inbox
	Metrics   http.Handler
	Logger    *slog.Logger
}

// Server is the dashboard.
type Server struct {
	app    *fiber.App
	port   string
	cart   Cart
	inbox  Inbox
	logger *slog.Logger

	state   State
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub

	// OnTranscript is called after a typed transcript is queued.
	OnTranscript func(t voice.Transcript)
}

// NewServer builds the routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:      cfg.Port,
		cart:      cfg.Cart,
		inbox:     cfg.Inbox,
		logger:    logger.With("component", "web"),
		logs:      make([]LogEntry, 0, maxLogs),
		statusHub: hub.New("status", logger),
		logHub:    hub.New("logs", logger),
		cameraHub: hub.New("camera", logger, hub.WithSlowPolicy(hub.SkipMessage)),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Shop Assistant Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/cart", s.handleCart)
	api.Get("/transcripts", s.handleListTranscripts)
	api.Post("/transcripts", s.handleSubmitTranscript)
	api.Get("/logs", s.handleLogs)
	api.Get("/streams", s.handleStreams)

	if cfg.Metrics != nil {
		metrics := fasthttpadaptor.NewFastHTTPHandler(cfg.Metrics)
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and serves until ctx is done or Listen fails.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("dashboard shutdown", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs Start on a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("dashboard stopped", "error", err)
		}
	}()
}

// UpdateState mutates the state and broadcasts it.
func (s *Server) UpdateState(update func(*State)) {
	s.stateMu.Lock()
	update(&s.state)
	s.state.UpdatedAt = time.Now()
	state := s.snapshotLocked()
	s.stateMu.Unlock()

	if err := s.statusHub.BroadcastJSON(state); err != nil {
		s.logger.Debug("state broadcast", "error", err)
	}
}

// State returns the current state with a live cart view.
func (s *Server) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshotLocked()
}

func (s *Server) snapshotLocked() State {
	st := s.state
	st.Faces = append([]scene.Face(nil), st.Faces...)
	st.Products = append([]ProductView(nil), st.Products...)
	st.Vocabulary = append([]string(nil), st.Vocabulary...)
	st.Cart = s.cartView()
	return st
}

func (s *Server) cartView() CartView {
	if s.cart == nil {
		return CartView{Items: []catalog.Product{}, Total: ""}
	}
	return CartView{Items: s.cart.Items(), Count: s.cart.Len(), Total: s.cart.TotalText()}
}

// AddLog appends a log line and broadcasts it.
func (s *Server) AddLog(kind, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    kind,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	if err := s.logHub.BroadcastJSON(entry); err != nil {
		s.logger.Debug("log broadcast", "error", err)
	}
}

// Logs returns a copy of the log buffer.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

// WantsFrames reports whether any camera client is connected.
func (s *Server) WantsFrames() bool {
	return s.cameraHub.ClientCount() > 0
}

// SendCameraFrame broadcasts a JPEG frame.
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
