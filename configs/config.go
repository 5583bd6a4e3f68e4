package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type RateLimits struct {
	MinSpacing time.Duration
	HourlyCap  int
	DailyCap   int
}

type Config struct {
	PostgresURI     string
	RedisURI        string
	SecretKey       string
	VaultHardened   bool
	CookieName      string
	GraphAPIBaseURL string
	WebAPIBaseURL   string
	SettleDelay     time.Duration
	DispatchPage    int
	RateLimits      RateLimits
	R2              R2
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:     getEnv("POSTGRES_URI", ""),
		RedisURI:        getEnv("REDIS_URI", ""),
		SecretKey:       getEnv("SECRET_KEY", ""),
		VaultHardened:   getEnvBool("VAULT_HARDENED", false),
		CookieName:      getEnv("COOKIE_NAME", ""),
		GraphAPIBaseURL: getEnv("GRAPH_API_BASE_URL", "https://graph.threads.net/v1.0"),
		WebAPIBaseURL:   getEnv("WEB_API_BASE_URL", "https://www.threads.net"),
		SettleDelay:     getEnvDuration("SETTLE_DELAY", 3*time.Second),
		DispatchPage:    getEnvInt("DISPATCH_PAGE_SIZE", 10),
		RateLimits: RateLimits{
			MinSpacing: getEnvDuration("RATE_MIN_SPACING", 15*time.Minute),
			HourlyCap:  getEnvInt("RATE_HOURLY_CAP", 3),
			DailyCap:   getEnvInt("RATE_DAILY_CAP", 20),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
