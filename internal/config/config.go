// Package config loads service configuration from the environment, with a
// .env file honored in development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type S3 struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	Port   string
	AppEnv string

	// Project store
	DataDir     string
	PostgresDSN string
	CacheSize   int

	// Artifact store
	S3 S3

	// LLM providers
	Provider     string // "openai", "gemini", "ollama", "fake"
	OpenAIKey    string
	OpenAIModel  string
	OpenAIURL    string
	GeminiKey    string
	GeminiModel  string
	OllamaURL    string
	OllamaModel  string
	LLMRPS       float64
	LLMBurst     int
	LLMRetries   int
	LLMBaseDelay time.Duration

	// Streaming proxy
	ProxyUpstreamURL string
	ProxyHeartbeat   time.Duration
	ProxyDeadline    time.Duration
}

// Load reads the environment (after a best-effort .env load) into a Config
// with defaults suitable for local development.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:   envStr("PORT", ":8080"),
		AppEnv: envStr("APP_ENV", "development"),

		DataDir:     envStr("DATA_DIR", "./data"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		CacheSize:   envInt("PROJECT_CACHE_SIZE", 128),

		S3: S3{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    os.Getenv("S3_REGION"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    envStr("S3_BUCKET", "brainlane-artifacts"),
			UseSSL:    envBool("S3_USE_SSL", false),
		},

		Provider:     envStr("LLM_PROVIDER", "openai"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIURL:    os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envStr("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaURL:    envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  envStr("OLLAMA_MODEL", "llama3.1"),
		LLMRPS:       envFloat("LLM_RPS", 1),
		LLMBurst:     envInt("LLM_BURST", 2),
		LLMRetries:   envInt("LLM_RETRIES", 3),
		LLMBaseDelay: time.Duration(envInt("LLM_RETRY_BASE_MS", 300)) * time.Millisecond,

		ProxyUpstreamURL: envStr("PROXY_UPSTREAM_URL", "https://api.openai.com/v1/chat/completions"),
		ProxyHeartbeat:   time.Duration(envInt("PROXY_HEARTBEAT_MS", 2500)) * time.Millisecond,
		ProxyDeadline:    time.Duration(envInt("PROXY_DEADLINE_SECONDS", 55)) * time.Second,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
