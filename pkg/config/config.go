package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Firebase
	FirebaseCredentials string
	FirebaseDatabaseURL string
	SessionCookieExpiry time.Duration
	SessionCookieSecure bool

	// Notion
	NotionClientID     string
	NotionClientSecret string
	NotionRedirectURI  string
	NotionAPIVersion   string
	NotionCallTimeout  time.Duration
	NotionMaxRetries   int
	OAuthStateSecret   string
	OAuthStateExpiry   time.Duration
	FrontendURL        string

	// Sync runs
	DatabaseURL     string
	SyncWorkerCount int
	SyncQueueSize   int
	SyncLockTTL     time.Duration

	// Pub/Sub dispatch (optional)
	GoogleProjectID   string
	GoogleCredentials string
	SyncPubSubTopic   string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FirebaseDatabaseURL: getEnv("FIREBASE_DATABASE_URL", ""),
		SessionCookieExpiry: getDuration("SESSION_COOKIE_EXPIRY", 5*24*time.Hour),
		SessionCookieSecure: getBool("SESSION_COOKIE_SECURE", true),
		NotionClientID:      getEnv("NOTION_CLIENT_ID", ""),
		NotionClientSecret:  getEnv("NOTION_CLIENT_SECRET", ""),
		NotionRedirectURI:   getEnv("NOTION_REDIRECT_URI", "http://localhost:8080/api/notion/callback"),
		NotionAPIVersion:    getEnv("NOTION_API_VERSION", ""),
		NotionCallTimeout:   getDuration("NOTION_CALL_TIMEOUT", 20*time.Second),
		NotionMaxRetries:    getInt("NOTION_MAX_RETRIES", 3),
		OAuthStateSecret:    getEnv("OAUTH_STATE_SECRET", "your-secret-key-change-in-production"),
		OAuthStateExpiry:    getDuration("OAUTH_STATE_EXPIRY", 10*time.Minute),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SyncWorkerCount:     getInt("SYNC_WORKER_COUNT", 3),
		SyncQueueSize:       getInt("SYNC_QUEUE_SIZE", 100),
		SyncLockTTL:         getDuration("SYNC_LOCK_TTL", 15*time.Minute),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS", ""),
		SyncPubSubTopic:     getEnv("SYNC_PUBSUB_TOPIC", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
