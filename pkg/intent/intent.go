// Package intent maps free-form transcripts to commands with a constrained
// language model prompt.
package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/inference"
)

// Generation parameters. A short budget and low temperature keep the model
// answering with a single key.
const (
	MaxTokens        = 7
	Temperature      = 0.15
	FrequencyPenalty = 0.5
	PresencePenalty  = 0.5
)

// StopSequences end generation at the first punctuation or newline.
var StopSequences = []string{".", ",", ";", "\n"}

const promptHeader = "I am a command mapping machine. I need to identify the most relevant command key for a given input. " +
	"I can only respond with a single command key from the following list or 'NO_MATCH' if no relevant command is found: "

// example is a worked input/output pair shown to the model. Outputs are
// registered commands so a copied answer dispatches.
type example struct {
	input  string
	output command.Command
}

var examples = []example{
	{"Turn on the shopping list", command.ToggleShoppingList},
	{"System turn off", command.Quit},
	{"What do you think?", command.NoMatch},
}

// BuildPrompt renders the completion prompt for a transcript.
func BuildPrompt(transcript string, vocabulary []command.Command) string {
	keys := make([]string, len(vocabulary))
	for i, c := range vocabulary {
		keys[i] = string(c)
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString(strings.Join(keys, ", "))
	b.WriteString(".")
	for _, e := range examples {
		b.WriteString("\nInput: ")
		b.WriteString(e.input)
		b.WriteString("\nOutput: ")
		b.WriteString(string(e.output))
	}
	b.WriteString("\nInput: ")
	b.WriteString(transcript)
	b.WriteString("\nOutput: ")
	return b.String()
}

// Observer receives resolution outcomes (metrics).
type Observer interface {
	IntentResolved(cmd command.Command, ok bool, took time.Duration)
}

// Resolver turns transcripts into commands.
type Resolver struct {
	llm      inference.Provider
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l.With("component", "intent") }
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// WithTimeout bounds a single resolution. Zero means no extra deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// NewResolver creates a resolver over an LLM provider.
func NewResolver(llm inference.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		llm:     llm,
		logger:  slog.Default().With("component", "intent"),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the trimmed completion as a command. The result is not
// checked against the vocabulary. LLM failures and empty completions resolve
// to command.NoMatch.
func (r *Resolver) Resolve(ctx context.Context, transcript string, vocabulary []command.Command) command.Command {
	start := time.Now()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.llm.Complete(ctx, &inference.CompletionRequest{
		Prompt:           BuildPrompt(transcript, vocabulary),
		MaxTokens:        MaxTokens,
		Temperature:      Temperature,
		Stop:             StopSequences,
		FrequencyPenalty: FrequencyPenalty,
		PresencePenalty:  PresencePenalty,
	})
	if err != nil {
		r.logger.Warn("intent resolution failed", "transcript", transcript, "error", err)
		r.notify(command.NoMatch, false, start)
		return command.NoMatch
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		r.logger.Debug("empty completion", "transcript", transcript)
		r.notify(command.NoMatch, true, start)
		return command.NoMatch
	}

	cmd := command.Command(text)
	r.logger.Info("intent resolved", "transcript", transcript, "command", text, "latency_ms", time.Since(start).Milliseconds())
	r.notify(cmd, true, start)
	return cmd
}

func (r *Resolver) notify(cmd command.Command, ok bool, start time.Time) {
	if r.observer != nil {
		r.observer.IntentResolved(cmd, ok, time.Since(start))
	}
}
