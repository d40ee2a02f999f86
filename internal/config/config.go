package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LimitRule is one window/quota pair for an endpoint class.
type LimitRule struct {
	Window time.Duration
	Max    int
}

type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	ServerPort  string

	// Cache TTLs per resource family. CacheOpTimeout bounds every redis call
	// so a slow cache degrades to a miss instead of stalling the request.
	CacheTTLEvents      time.Duration
	CacheTTLPlaces      time.Duration
	CacheTTLInfluencers time.Duration
	CacheTTLSearch      time.Duration
	CacheOpTimeout      time.Duration

	// Tiered limiter: one shared window, quota picked by membership tier.
	TierWindow       time.Duration
	TierMaxAnonymous int
	TierMaxRegular   int
	TierMaxApproved  int

	// Endpoint-class overrides, evaluated in front of the tiered limiter.
	ApplyLimit  LimitRule
	SearchLimit LimitRule
	UploadLimit LimitRule
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		CacheTTLEvents:      getDuration("CACHE_TTL_EVENTS", 5*time.Minute),
		CacheTTLPlaces:      getDuration("CACHE_TTL_PLACES", 10*time.Minute),
		CacheTTLInfluencers: getDuration("CACHE_TTL_INFLUENCERS", 10*time.Minute),
		CacheTTLSearch:      getDuration("CACHE_TTL_SEARCH", 2*time.Minute),
		CacheOpTimeout:      getDuration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		TierWindow:       getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		TierMaxAnonymous: getInt("RATE_LIMIT_ANONYMOUS", 100),
		TierMaxRegular:   getInt("RATE_LIMIT_REGULAR", 200),
		TierMaxApproved:  getInt("RATE_LIMIT_APPROVED", 500),

		ApplyLimit: LimitRule{
			Window: getDuration("APPLY_LIMIT_WINDOW", 15*time.Minute),
			Max:    getInt("APPLY_LIMIT_MAX", 5),
		},
		SearchLimit: LimitRule{
			Window: getDuration("SEARCH_LIMIT_WINDOW", time.Minute),
			Max:    getInt("SEARCH_LIMIT_MAX", 30),
		},
		UploadLimit: LimitRule{
			Window: getDuration("UPLOAD_LIMIT_WINDOW", time.Hour),
			Max:    getInt("UPLOAD_LIMIT_MAX", 10),
		},
	}, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
