package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Provider       string // "openai" (any compatible gateway) or "gemini"
	ChatAPIURL     string
	ModelName      string
	GeminiModel    string
	MaxDocChars    int
	PreviewChars   int
	DatasetPath    string // non-empty enables the static dataset context
	AllowedOrigins []string
}

// LoadConfig loads the environment variables and returns config. API keys
// are deliberately absent: they are supplied per session by the user and
// held only in session memory.
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Provider:       getEnv("LLM_PROVIDER", "openai"),
		ChatAPIURL:     getEnv("CHAT_API_URL", ""),
		ModelName:      getEnv("MODEL_NAME", "gpt-4o-mini"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxDocChars:    getEnvInt("MAX_DOC_CHARS", 30000),
		PreviewChars:   getEnvInt("PREVIEW_CHARS", 5000),
		DatasetPath:    getEnv("DATASET_PATH", ""),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:8080"), ","),
	}
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
