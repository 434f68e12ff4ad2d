package app

import (
	"os"
	"strconv"
	"time"

	"github.com/lukasbauer/livetranslate/internal/realtime"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	SentryDSN   string
	Environment string

	// Upstream realtime provider
	OpenAIAPIKey  string
	RealtimeURL   string
	RealtimeModel string

	// Session configuration sent once per upstream session
	TranslateInstructions string
	VADThreshold          float64 // server VAD amplitude threshold (0.0-1.0)
	VADSilenceMs          int     // trailing silence that ends an utterance

	// Graceful shutdown
	DrainTimeout time.Duration
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":3001"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "text"),
		SentryDSN:   getenv("SENTRY_DSN", ""),
		Environment: getenv("ENVIRONMENT", "development"),

		// Upstream realtime provider
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"), // Required - no fallback
		RealtimeURL:   getenv("REALTIME_URL", realtime.DefaultWebSocketURL),
		RealtimeModel: getenv("REALTIME_MODEL", realtime.DefaultModel),

		// Session configuration
		TranslateInstructions: getenv("TRANSLATE_INSTRUCTIONS", realtime.DefaultInstructions),
		VADThreshold:          getenvFloatClamped("VAD_THRESHOLD", 0.5, 0.0, 1.0),
		VADSilenceMs:          getenvIntClamped("VAD_SILENCE_MS", 500, 100, 5000),

		DrainTimeout: getenvDuration("DRAIN_TIMEOUT", 30*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped reads an int, falling back to def when unset or invalid
// and clamping the result to [min, max].
func getenvIntClamped(k string, def, min, max int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getenvFloatClamped(k string, def, min, max float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getenvDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
