package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the lead qualification voice service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	JanitorInterval          time.Duration
	TurnTimeout              time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	VoiceProvider string

	ElevenLabsAPIKey   string
	ElevenLabsBaseURL  string
	ElevenLabsTTSVoice string
	ElevenLabsTTSModel string
	ElevenLabsSTTModel string

	AgentName string

	SampleRate         int
	FrameSize          int
	VADEnergyThreshold float64
	VADMinVoiceMS      int
	VADMinSilenceMS    int

	ErrorGrace time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "leadline"),
		AllowAnyOrigin:    false,
		VoiceProvider:     envOrDefault("VOICE_PROVIDER", "auto"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Warm premade voice suited to outbound calls.
		ElevenLabsTTSVoice: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsSTTModel: envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v1"),
		ElevenLabsAPIKey:   stringsTrimSpace("ELEVENLABS_API_KEY"),
		AgentName:          envOrDefault("AGENT_NAME", "Avery"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),

		SampleRate:         16000,
		FrameSize:          4096,
		VADEnergyThreshold: 0.01,
		VADMinVoiceMS:      300,
		VADMinSilenceMS:    500,

		ErrorGrace:               5 * time.Second,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		JanitorInterval:          15 * time.Second,
		TurnTimeout:              30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.JanitorInterval, err = durationFromEnv("APP_JANITOR_INTERVAL", cfg.JanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("APP_TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ErrorGrace, err = durationFromEnv("APP_ERROR_GRACE", cfg.ErrorGrace)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.SampleRate, err = intFromEnv("AUDIO_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameSize, err = intFromEnv("AUDIO_FRAME_SIZE", cfg.FrameSize)
	if err != nil {
		return Config{}, err
	}
	cfg.VADEnergyThreshold, err = floatFromEnv("VAD_ENERGY_THRESHOLD", cfg.VADEnergyThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.VADMinVoiceMS, err = intFromEnv("VAD_MIN_VOICE_MS", cfg.VADMinVoiceMS)
	if err != nil {
		return Config{}, err
	}
	cfg.VADMinSilenceMS, err = intFromEnv("VAD_MIN_SILENCE_MS", cfg.VADMinSilenceMS)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	if cfg.FrameSize <= 0 {
		return Config{}, fmt.Errorf("AUDIO_FRAME_SIZE must be positive")
	}
	if cfg.VADEnergyThreshold <= 0 {
		return Config{}, fmt.Errorf("VAD_ENERGY_THRESHOLD must be positive")
	}
	if cfg.VADMinVoiceMS <= 0 || cfg.VADMinSilenceMS <= 0 {
		return Config{}, fmt.Errorf("VAD hysteresis durations must be positive")
	}
	if cfg.ErrorGrace <= 0 {
		return Config{}, fmt.Errorf("APP_ERROR_GRACE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
