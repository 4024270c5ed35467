// Command voicecheck exercises the voice path on its own: it speaks a prompt,
// records one command, transcribes it and maps it to a shop command, then
// reports stage latencies. Use it to tune the speech services and the audio
// devices without a camera.
//
// Usage:
//
//	go run ./cmd/voicecheck --loops 3
//	go run ./cmd/voicecheck --audio mock --loops 1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-shopassist/internal/config"
	ilog "github.com/teslashibe/go-shopassist/internal/log"
	"github.com/teslashibe/go-shopassist/pkg/assistant"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/intent"
	"github.com/teslashibe/go-shopassist/pkg/voice"
)

// vocabulary is what the assistant registers at runtime.
var vocabulary = []command.Command{
	command.AddProduct,
	command.ClearCart,
	command.FinalizeTransaction,
	command.Quit,
	command.RefreshData,
	command.ToggleShoppingList,
	command.VoiceInterface,
}

func main() {
	configPath := flag.String("config", "", "Path to config.ini")
	loops := flag.Int("loops", 3, "Number of speak/listen rounds")
	prompt := flag.String("prompt", "Say a shop command after the beep.", "Text spoken before each recording")
	audio := flag.String("audio", "", "Audio backend: auto, alsa, mock")
	wait := flag.Duration("wait", 15*time.Second, "How long to wait for each transcript")
	debugMode := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}
	if *debugMode {
		settings.LogLevel = "debug"
	}
	ilog.Init(settings.LogLevel)
	logger := ilog.Component("voicecheck")

	fmt.Println("🎤 Voice Check")
	fmt.Println("==============")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	llm, err := assistant.BuildLLM(ctx, settings, logger)
	if err != nil {
		fmt.Printf("❌ Language model: %v\n", err)
		os.Exit(1)
	}
	defer llm.Close()

	synth, transcriber, err := assistant.BuildSpeech(settings, logger)
	if err != nil {
		fmt.Printf("❌ Speech: %v\n", err)
		os.Exit(1)
	}
	defer synth.Close()

	vcfg, err := assistant.VoiceConfig(settings, *audio)
	if err != nil {
		fmt.Printf("❌ Audio: %v\n", err)
		os.Exit(1)
	}
	vcfg.ProfileLatency = true

	inbox := voice.NewInbox()
	pipeline := voice.NewPipeline(synth, transcriber, inbox, vcfg, voice.WithLogger(logger))
	resolver := intent.NewResolver(llm.Provider, intent.WithLogger(logger))

	fmt.Printf("Audio: %s | Recording: %s | Loops: %d\n\n", vcfg.Audio.Backend, vcfg.RecordDuration, *loops)

	for i := 1; i <= *loops; i++ {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("📝 Round %d/%d\n", i, *loops)

		pipeline.Speak(*prompt)
		pipeline.Wait()

		start := time.Now()
		pipeline.Listen()
		t, ok := awaitTranscript(ctx, inbox, *wait)
		pipeline.Wait()
		if !ok {
			fmt.Println("   ❌ No transcript")
			continue
		}

		cmd := resolver.Resolve(ctx, t.Text, vocabulary)
		fmt.Printf("   🗣️  %q → %s (%s)\n", t.Text, cmd, time.Since(start).Round(time.Millisecond))
	}

	printAverages(pipeline.Metrics())
}

func awaitTranscript(ctx context.Context, inbox *voice.Inbox, wait time.Duration) (voice.Transcript, bool) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		if t, ok := inbox.TryPop(); ok {
			return t, true
		}
		select {
		case <-ctx.Done():
			return voice.Transcript{}, false
		case <-deadline.C:
			return voice.Transcript{}, false
		case <-tick.C:
		}
	}
}

func printAverages(m *voice.MetricsCollector) {
	fmt.Println()
	fmt.Println("📊 Averages")
	for _, kind := range []string{voice.KindSpeak, voice.KindListen} {
		avg := m.Average(kind)
		fmt.Printf("   %-6s %s\n", kind, avg.FormatLatency())
	}
}
