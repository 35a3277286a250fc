package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port            string
	RedisURL        string
	StoreBackend    string
	ResultsDSN      string
	LogLevel        string
	LogFormat       string
	MatchTTL        time.Duration
	TickInterval    time.Duration
	WordsEasyFile   string
	WordsHardFile   string
	SessionSecret   string
	SubmitRateLimit int
}

func Load() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StoreBackend:    getEnv("STORE_BACKEND", "redis"),
		ResultsDSN:      getEnv("RESULTS_DSN", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		MatchTTL:        getDuration("MATCH_TTL", time.Hour),
		TickInterval:    getDuration("TICK_INTERVAL", 2*time.Second),
		WordsEasyFile:   getEnv("WORDS_EASY_FILE", "data/easy_words.txt"),
		WordsHardFile:   getEnv("WORDS_HARD_FILE", "data/hard_words.txt"),
		SessionSecret:   getEnv("SESSION_SECRET", "dev_secret_change_me"),
		SubmitRateLimit: getInt("SUBMIT_RATE_LIMIT", 600),
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}
