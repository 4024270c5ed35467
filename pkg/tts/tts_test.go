package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/tts"
)

func TestSpeechSynthesize(t *testing.T) {
	wav := []byte("RIFF....WAVEfmt fake")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("no API key configured, Authorization must be absent")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["input"] != "Clearing the cart..." {
			t.Errorf("input = %q", body["input"])
		}
		if body["response_format"] != "wav" {
			t.Errorf("response_format = %q", body["response_format"])
		}
		if body["model"] != "tts_models/en/ljspeech/vits" {
			t.Errorf("model = %q", body["model"])
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer server.Close()

	p, err := tts.NewSpeech(tts.WithBaseURL(server.URL + "/v1/"))
	if err != nil {
		t.Fatalf("NewSpeech: %v", err)
	}
	defer p.Close()

	clip, err := p.Synthesize(context.Background(), "Clearing the cart...")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Encoding != tts.EncodingWAV {
		t.Errorf("Encoding = %s", clip.Encoding)
	}
	if string(clip.Audio) != string(wav) {
		t.Errorf("Audio = %q", clip.Audio)
	}
}

func TestSpeechPCM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 480))
	}))
	defer server.Close()

	p, _ := tts.NewSpeech(
		tts.WithBaseURL(server.URL),
		tts.WithOutputFormat(tts.EncodingPCM),
		tts.WithSampleRate(16000),
	)
	clip, err := p.Synthesize(context.Background(), "9.00 [PLN]")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Encoding != tts.EncodingPCM || clip.SampleRate != 16000 || clip.Channels != 1 {
		t.Errorf("clip = %+v", clip)
	}
}

func TestSpeechSendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	p, _ := tts.NewSpeech(tts.WithBaseURL(server.URL), tts.WithAPIKey("sk-test"))
	if _, err := p.Synthesize(context.Background(), "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
}

func TestSpeechErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		message   string
		retryable bool
		json      bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "bad key", false, true},
		{"server error", http.StatusInternalServerError, `boom`, "boom", true, false},
		{"rate limited", http.StatusTooManyRequests, `slow down`, "slow down", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.json {
					w.Header().Set("Content-Type", "application/json")
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, _ := tts.NewSpeech(tts.WithBaseURL(server.URL), tts.WithRetry(1, time.Millisecond))
			_, err := p.Synthesize(context.Background(), "hello")

			var apiErr *tts.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.message {
				t.Errorf("APIError = %+v", apiErr)
			}
			if apiErr.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", apiErr.Retryable(), tt.retryable)
			}
		})
	}
}

func TestSpeechEmptyText(t *testing.T) {
	p, _ := tts.NewSpeech()
	if _, err := p.Synthesize(context.Background(), "   "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestSpeechEmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p, _ := tts.NewSpeech(tts.WithBaseURL(server.URL))
	if _, err := p.Synthesize(context.Background(), "hi"); !errors.Is(err, tts.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []tts.Option
		want error
	}{
		{"defaults", nil, nil},
		{"no base url", []tts.Option{tts.WithBaseURL("")}, tts.ErrNoBaseURL},
		{"no model", []tts.Option{tts.WithModel("")}, tts.ErrNoModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tts.NewSpeech(tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewSpeech() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMock(t *testing.T) {
	mock := tts.NewMock()

	clip, err := mock.Synthesize(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(clip.Audio) != 11*640 || clip.Encoding != tts.EncodingPCM || clip.SampleRate != 16000 {
		t.Errorf("clip = %d bytes, %s @ %d", len(clip.Audio), clip.Encoding, clip.SampleRate)
	}
	if got := mock.Texts(); len(got) != 1 || got[0] != "Hello world" {
		t.Errorf("Texts() = %v", got)
	}
	mock.Close()
	if !mock.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestMockWithLatencyCancel(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
