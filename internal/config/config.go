// Package config loads go-shopassist settings from config.ini, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Section is the ini section holding every setting.
const Section = "robotic_shop_assistant"

// EnvPrefix prefixes environment overrides, e.g. SHOPASSIST_DB_PASSWORD.
const EnvPrefix = "SHOPASSIST"

// Settings mirrors the ROBOTIC_SHOP_ASSISTANT section of config.ini.
type Settings struct {
	// Camera
	CameraDevice int `mapstructure:"camera_device"`
	CameraWidth  int `mapstructure:"camera_width"`
	CameraHeight int `mapstructure:"camera_height"`

	// Catalog database
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBName     string `mapstructure:"db_name"`
	DBUsername string `mapstructure:"db_username"`
	DBPassword string `mapstructure:"db_password"`
	DBSSLMode  string `mapstructure:"db_sslmode"`
	RedisURL   string `mapstructure:"redis_url"`

	// Language model
	UseLocalLLM  bool   `mapstructure:"use_local_llm"`
	LocalLLMPath string `mapstructure:"local_llm_path"`
	NGPULayers   int    `mapstructure:"n_gpu_layers"`
	LLMServerBin string `mapstructure:"llm_server_bin"`
	LLMLocalURL  string `mapstructure:"llm_local_url"`
	LLMRemoteURL string `mapstructure:"llm_remote_url"`
	LLMModel     string `mapstructure:"llm_model"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`

	// Speech
	TTSModelName string `mapstructure:"tts_model_name"`
	TTSURL       string `mapstructure:"tts_url"`
	TTSVoice     string `mapstructure:"tts_voice"`
	STTModelName string `mapstructure:"stt_model_name"`
	STTURL       string `mapstructure:"stt_url"`
	AudioBackend string `mapstructure:"audio_backend"`
	AudioDevice  string `mapstructure:"audio_device"`
	ScratchDir   string `mapstructure:"scratch_dir"`

	// Vision
	FaceModel            string  `mapstructure:"face_model"`
	FaceRecognitionModel string  `mapstructure:"face_recognition_model"`
	KnownFacesDir        string  `mapstructure:"known_faces_dir"`
	FaceTolerance        float64 `mapstructure:"face_tolerance"`

	// Process
	WebPort  string `mapstructure:"web_port"`
	LogLevel string `mapstructure:"log_level"`
}

type root struct {
	Shop Settings `mapstructure:"robotic_shop_assistant"`
}

// defaults holds every key with its default value. Keys not listed here are
// not bound to the environment.
var defaults = map[string]any{
	"camera_device": 0,
	"camera_width":  640,
	"camera_height": 480,

	"db_host":     "localhost",
	"db_port":     5432,
	"db_name":     "robotic_shop_assistant",
	"db_username": "",
	"db_password": "",
	"db_sslmode":  "disable",
	"redis_url":   "",

	"use_local_llm":  true,
	"local_llm_path": "",
	"n_gpu_layers":   0,
	"llm_server_bin": "",
	"llm_local_url":  "http://localhost:8081/v1",
	"llm_remote_url": "https://api.openai.com/v1",
	"llm_model":      "gpt-3.5-turbo-instruct",
	"openai_api_key": "",

	"tts_model_name": "tts-1",
	"tts_url":        "https://api.openai.com/v1",
	"tts_voice":      "alloy",
	"stt_model_name": "whisper-1",
	"stt_url":        "https://api.openai.com/v1",
	"audio_backend":  "auto",
	"audio_device":   "",
	"scratch_dir":    "",

	"face_model":             "models/face_detection_yunet_2023mar.onnx",
	"face_recognition_model": "models/face_recognition_sface_2021dec.onnx",
	"known_faces_dir":        "known_faces",
	"face_tolerance":         0.575,

	"web_port":  "8080",
	"log_level": "info",
}

// Load reads settings. A .env file in the working directory is applied to the
// environment first; path names the ini file and may be empty, in which case
// ./config.ini is used when present. A missing file is not an error.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("ini")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, val := range defaults {
		full := Section + "." + key
		v.SetDefault(full, val)
		if err := v.BindEnv(full, EnvPrefix+"_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var r root
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &r.Shop, nil
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	if s.CameraWidth <= 0 || s.CameraHeight <= 0 {
		return &ConfigError{Field: "CAMERA_WIDTH/CAMERA_HEIGHT", Message: fmt.Sprintf("camera size must be positive, got %dx%d", s.CameraWidth, s.CameraHeight)}
	}
	if s.FaceTolerance <= 0 || s.FaceTolerance > 2 {
		return &ConfigError{Field: "FACE_TOLERANCE", Message: fmt.Sprintf("face tolerance must be in (0, 2], got %v", s.FaceTolerance)}
	}
	if s.UseLocalLLM && s.LLMLocalURL == "" {
		return &ConfigError{Field: "LLM_LOCAL_URL", Message: "LLM_LOCAL_URL is required when USE_LOCAL_LLM is set"}
	}
	if !s.UseLocalLLM && s.LLMRemoteURL == "" {
		return &ConfigError{Field: "LLM_REMOTE_URL", Message: "LLM_REMOTE_URL is required when USE_LOCAL_LLM is off"}
	}
	if s.WebPort == "" {
		return &ConfigError{Field: "WEB_PORT", Message: "WEB_PORT must not be empty"}
	}
	return nil
}

// DSN returns the postgres connection string for the catalog database.
func (s *Settings) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.DBHost, s.DBPort, s.DBUsername, s.DBPassword, s.DBName, s.DBSSLMode)
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
