// Robotic shop assistant - recognizes customers and products through a
// webcam and takes spoken or typed shopping commands.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-shopassist/internal/config"
	ilog "github.com/teslashibe/go-shopassist/internal/log"
	"github.com/teslashibe/go-shopassist/pkg/assistant"
	"github.com/teslashibe/go-shopassist/pkg/debug"
)

func main() {
	configPath := flag.String("config", "", "Path to config.ini (default ./config.ini)")
	debugMode := flag.Bool("debug", false, "Enable verbose debug logging")
	visionDebug := flag.Bool("debug-vision", false, "Log every detection")
	webPort := flag.String("web-port", "", "Dashboard port (overrides WEB_PORT)")
	rebuildFaces := flag.Bool("rebuild-faces", false, "Rebuild the known faces cache")
	audioBackend := flag.String("audio", "", "Audio backend: auto, alsa, mock (overrides AUDIO_BACKEND)")
	headless := flag.Bool("headless", false, "Do not open the preview window")
	static := flag.String("static", "", "Directory with dashboard assets")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	if *webPort != "" {
		settings.WebPort = *webPort
	}
	if *debugMode {
		settings.LogLevel = "debug"
	}
	debug.Vision = *visionDebug
	ilog.Init(settings.LogLevel)

	app, err := assistant.New(settings, assistant.Options{
		Debug:        *debugMode,
		RebuildFaces: *rebuildFaces,
		Headless:     *headless,
		AudioBackend: *audioBackend,
		StaticDir:    *static,
	})
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	slog.SetDefault(app.Logger())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		app.Shutdown()
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		slog.Error("runtime error", "error", err)
	}
}
