package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string
	LogLevel   string

	SecretKey    string
	AllowedEmail string

	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTimeout     time.Duration
	LLMMaxTokens   int
	LLMTemperature float64

	PageLoadTimeout  time.Duration
	FetchTimeout     time.Duration
	MaxRetries       int
	RetryBackoffBase time.Duration

	MaxIterations    int
	MaxChainDuration time.Duration
	QuestionPause    time.Duration

	SubmitAllowedDomains  []string
	FollowNextOnIncorrect bool
	PageTextFallback      bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
}

// Load loads configuration from environment variables, reading a .env file
// first if one is present in the working directory.
func Load() *Config {
	// A missing .env file is fine; real environments set variables directly.
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		SecretKey:    getEnv("SECRET_KEY", ""),
		AllowedEmail: getEnv("ALLOWED_EMAIL", ""),

		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT_SECONDS", 150),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 4096),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.1),

		PageLoadTimeout:  getEnvAsDuration("PAGE_LOAD_TIMEOUT_SECONDS", 30),
		FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT_SECONDS", 30),
		MaxRetries:       getEnvAsInt("MAX_RETRIES", 3),
		RetryBackoffBase: getEnvAsDuration("RETRY_BACKOFF_SECONDS", 1),

		MaxIterations:    getEnvAsInt("MAX_ITERATIONS", 10),
		MaxChainDuration: getEnvAsDuration("MAX_CHAIN_DURATION_SECONDS", 600),
		QuestionPause:    getEnvAsDuration("QUESTION_PAUSE_SECONDS", 1),

		SubmitAllowedDomains:  getEnvAsSlice("SUBMIT_ALLOWED_DOMAINS"),
		FollowNextOnIncorrect: getEnvAsBool("FOLLOW_NEXT_ON_INCORRECT", false),
		PageTextFallback:      getEnvAsBool("PAGE_TEXT_FALLBACK", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "user"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresDB:       getEnv("POSTGRES_DB", "quizrunner"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackSeconds)) * time.Second
}

func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
