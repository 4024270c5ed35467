package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeINI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromINI(t *testing.T) {
	path := writeINI(t, `[ROBOTIC_SHOP_ASSISTANT]
CAMERA_WIDTH = 1280
CAMERA_HEIGHT = 720
DB_USERNAME = shop
DB_PASSWORD = secret
USE_LOCAL_LLM = false
LOCAL_LLM_PATH = models/mistral-7b.gguf
N_GPU_LAYERS = 20
TTS_MODEL_NAME = tts_models/en/ljspeech/vits
STT_MODEL_NAME = base
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.CameraWidth != 1280 || s.CameraHeight != 720 {
		t.Errorf("camera = %dx%d, want 1280x720", s.CameraWidth, s.CameraHeight)
	}
	if s.DBUsername != "shop" || s.DBPassword != "secret" {
		t.Errorf("db credentials = %q/%q", s.DBUsername, s.DBPassword)
	}
	if s.UseLocalLLM {
		t.Error("UseLocalLLM should be false")
	}
	if s.LocalLLMPath != "models/mistral-7b.gguf" {
		t.Errorf("LocalLLMPath = %q", s.LocalLLMPath)
	}
	if s.NGPULayers != 20 {
		t.Errorf("NGPULayers = %d, want 20", s.NGPULayers)
	}
	if s.TTSModelName != "tts_models/en/ljspeech/vits" {
		t.Errorf("TTSModelName = %q", s.TTSModelName)
	}
	if s.STTModelName != "base" {
		t.Errorf("STTModelName = %q", s.STTModelName)
	}

	// Untouched keys keep their defaults.
	if s.FaceTolerance != 0.575 {
		t.Errorf("FaceTolerance = %v, want 0.575", s.FaceTolerance)
	}
	if s.DBName != "robotic_shop_assistant" {
		t.Errorf("DBName = %q", s.DBName)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.CameraWidth != 640 || s.CameraHeight != 480 {
		t.Errorf("camera = %dx%d, want defaults", s.CameraWidth, s.CameraHeight)
	}
	if !s.UseLocalLLM {
		t.Error("UseLocalLLM should default to true")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeINI(t, "[ROBOTIC_SHOP_ASSISTANT]\nDB_PASSWORD = from-file\n")
	t.Setenv("SHOPASSIST_DB_PASSWORD", "from-env")
	t.Setenv("SHOPASSIST_WEB_PORT", "9191")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DBPassword != "from-env" {
		t.Errorf("DBPassword = %q, want from-env", s.DBPassword)
	}
	if s.WebPort != "9191" {
		t.Errorf("WebPort = %q, want 9191", s.WebPort)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Settings {
		s, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return s
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"zero width", func(s *Settings) { s.CameraWidth = 0 }, "CAMERA_WIDTH/CAMERA_HEIGHT"},
		{"negative tolerance", func(s *Settings) { s.FaceTolerance = -1 }, "FACE_TOLERANCE"},
		{"local llm without url", func(s *Settings) { s.UseLocalLLM = true; s.LLMLocalURL = "" }, "LLM_LOCAL_URL"},
		{"remote llm without url", func(s *Settings) { s.UseLocalLLM = false; s.LLMRemoteURL = "" }, "LLM_REMOTE_URL"},
		{"empty port", func(s *Settings) { s.WebPort = "" }, "WEB_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			err := s.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	s := &Settings{DBHost: "db", DBPort: 5433, DBUsername: "u", DBPassword: "p", DBName: "shop", DBSSLMode: "disable"}
	dsn := s.DSN()
	for _, part := range []string{"host=db", "port=5433", "user=u", "password=p", "dbname=shop", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %q missing %q", dsn, part)
		}
	}
}
