package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	FrontendURL string

	// Application auth
	JWTSecret    string
	JWTExpiresIn string
	BcryptCost   int

	// Instagram OAuth app (code exchange)
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURI  string
	InstagramScopes       []string

	// Pre-provisioned Graph API credentials (Business accounts)
	IGAccessToken string
	IGUserID      string

	// Legacy Basic Display token
	BasicAccessToken string

	// Webhook secrets
	WebhookVerifyToken   string
	WebhookSigningSecret string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Outbound Graph API tuning
	GraphAPIVersion  string
	GraphRateLimit   int
	MediaFetchLimit  int
	SyncIntervalMins int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/social_integration"),
		DBName:      getEnv("DB_NAME", "social_integration"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiresIn: getEnv("JWT_EXPIRES_IN", "24h"),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),

		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		InstagramRedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		InstagramScopes: strings.Split(getEnv("INSTAGRAM_SCOPES",
			"instagram_basic,pages_show_list,instagram_content_publish,instagram_manage_comments"), ","),

		IGAccessToken:    getEnv("IG_ACCESS_TOKEN", ""),
		IGUserID:         getEnv("IG_USER_ID", ""),
		BasicAccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),

		WebhookVerifyToken:   getEnv("INSTAGRAM_WEBHOOK_VERIFY_TOKEN", ""),
		WebhookSigningSecret: getEnv("INSTAGRAM_WEBHOOK_SIGNING_SECRET", ""),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GraphAPIVersion:  getEnv("GRAPH_API_VERSION", "v18.0"),
		GraphRateLimit:   getEnvInt("GRAPH_RATE_LIMIT", 200),
		MediaFetchLimit:  getEnvInt("MEDIA_FETCH_LIMIT", 25),
		SyncIntervalMins: getEnvInt("SYNC_INTERVAL_MINUTES", 360),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	return cfg, nil
}

// ValidateOAuth reports whether the OAuth code-exchange flow can be enabled.
// Missing credentials disable the flow with an explicit configuration error
// instead of failing mid-exchange.
func (c *Config) ValidateOAuth() error {
	var missing []string
	if c.InstagramClientID == "" {
		missing = append(missing, "INSTAGRAM_CLIENT_ID")
	}
	if c.InstagramClientSecret == "" {
		missing = append(missing, "INSTAGRAM_CLIENT_SECRET")
	}
	if c.InstagramRedirectURI == "" {
		missing = append(missing, "INSTAGRAM_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("instagram OAuth is not configured: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateWebhook reports whether the webhook verification handshake can be enabled.
func (c *Config) ValidateWebhook() error {
	if c.WebhookVerifyToken == "" {
		return fmt.Errorf("webhook verification is not configured: missing INSTAGRAM_WEBHOOK_VERIFY_TOKEN")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
