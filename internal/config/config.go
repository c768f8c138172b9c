package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	// Hosted backend
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicTimeout time.Duration
	// Local inference server
	OllamaBaseURL string
	OllamaTimeout time.Duration
	// Optional bearer token for an Ollama instance behind an authenticating proxy
	OllamaAPIKey string
	// Optional persona YAML replacing the embedded one
	PromptFile string
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:3001",
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:             getEnvDefault("PORT", "8000"),
		AllowedOrigins:   getEnvListDefault("ALLOWED_ORIGINS", defaultOrigins),
		LogLevel:         getEnvDefault("LOG_LEVEL", "info"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   getEnvDefault("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		AnthropicTimeout: getEnvDurationDefault("ANTHROPIC_TIMEOUT", 60*time.Second),
		OllamaBaseURL:    getEnvDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaTimeout:    getEnvDurationDefault("OLLAMA_TIMEOUT", 30*time.Second),
		OllamaAPIKey:     os.Getenv("OLLAMA_API_KEY"),
		PromptFile:       os.Getenv("PROMPT_FILE"),
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("45s", "2m") or a bare number of seconds.
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
		return d
	}
	return def
}
